// Package model defines shared data types used across the price collector.
//
// Conventions:
//   - Prices: decimal.Decimal, non-negative, scaled from the source's declared
//     precision (e.g. an on-chain integer answer divided by 10^decimals)
//   - Timestamps: int64 seconds since Unix epoch, UTC
//   - Symbols: canonical uppercase form with a quote-currency suffix (e.g. "BTCUSDT")
package model
