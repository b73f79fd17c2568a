// Package cache keeps synthesized PCM so repeated phrases ("Sure",
// "I opened the browser") are not sent through the synthesizer again.
// Lookups go to an in-memory LRU first and then to an optional
// zstd-compressed disk store that survives restarts.
package cache
