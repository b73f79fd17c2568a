package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// comments annotates keys in the default config file.
var comments = map[string]string{
	"audio_enabled":         "Speak responses aloud (false prints them only)",
	"words_per_batch":       "Words handed to the speech engine at a time",
	"queue_size":            "Spoken responses allowed to wait behind the current one",
	"engine":                "Speech engine: mock or piper",
	"player":                "Audio output: oto (speakers) or silent",
	"volume":                "Volume level (0.0 to 1.0)",
	"rate_limit_per_minute": "Maximum synthesis calls per minute (0 is unlimited)",
	"synthesis_timeout":     "Give up on a single synthesis call after this long",
	"piper":                 "Piper engine",
	"piper.model":           "Path to the .onnx voice model",
	"piper.config_path":     "Defaults to the model path with .json appended",
	"mock":                  "Mock engine: plays a short tone per word",
	"cache":                 "Synthesized audio cache",
	"cache.dir":             "Defaults to the user cache directory",
	"cache.disk_mb":         "0 keeps the cache in memory only",
	"log.file":              "Log to this file instead of stderr",
	"metrics.addr":          "Serve Prometheus metrics on this address, e.g. localhost:9464",
}

// DefaultFile renders the default configuration as commented YAML.
func DefaultFile() (string, error) {
	var doc yaml.Node
	if err := doc.Encode(Defaults()); err != nil {
		return "", fmt.Errorf("unable to encode default config: %w", err)
	}
	annotate(&doc, "")

	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("unable to render default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("unable to render default config: %w", err)
	}

	return "# jarvis configuration\n\n" + sb.String(), nil
}

func annotate(node *yaml.Node, prefix string) {
	if node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		path := key.Value
		if prefix != "" {
			path = prefix + "." + key.Value
		}
		if c, ok := comments[path]; ok {
			key.HeadComment = c
		}
		annotate(value, path)
	}
}
