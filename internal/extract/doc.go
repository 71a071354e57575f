// Package extract turns fetched directory and city pages into pipeline
// records. It owns the CSS selector tables, the title parsing rules for city
// anchors, and the word-boundary text chunker applied to descriptions.
package extract
