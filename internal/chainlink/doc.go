// Package chainlink implements the on-chain poll source.
//
// Prices come from Chainlink aggregator proxies read over JSON-RPC eth_call:
// latestRoundData() for the answer and decimals() for the scale. One Client
// speaks to one RPC endpoint; endpoint rotation lives in the feed package.
package chainlink
