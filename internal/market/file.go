package market

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileSource reads snapshots from a YAML or JSON document on every fetch.
type FileSource struct {
	path string
}

// NewFileSource constructs a file-backed snapshot source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type snapshotDocument struct {
	Instruments []Snapshot `json:"instruments" yaml:"instruments"`
}

// FetchSnapshots parses the file. Either a bare list or an `instruments` key is accepted.
func (f *FileSource) FetchSnapshots(ctx context.Context) ([]Snapshot, error) {
	if f.path == "" {
		return nil, fmt.Errorf("snapshot file path not configured")
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".json":
		return decodeJSON(raw)
	default:
		return decodeYAML(raw)
	}
}

func decodeJSON(raw []byte) ([]Snapshot, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []Snapshot
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode snapshot json: %w", err)
		}
		return list, nil
	}
	var doc snapshotDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot json: %w", err)
	}
	return doc.Instruments, nil
}

func decodeYAML(raw []byte) ([]Snapshot, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("decode snapshot yaml: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var list []yamlSnapshot
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("decode snapshot yaml: %w", err)
		}
		return convertYAML(list)
	}

	var doc struct {
		Instruments []yamlSnapshot `yaml:"instruments"`
	}
	if err := root.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode snapshot yaml: %w", err)
	}
	return convertYAML(doc.Instruments)
}

// yamlSnapshot keeps prices as strings; decimal.Decimal has no YAML unmarshaler.
type yamlSnapshot struct {
	Symbol       string `yaml:"symbol"`
	Name         string `yaml:"name"`
	CurrentPrice string `yaml:"currentPrice"`
	PreviousHigh string `yaml:"previousHigh"`
	Volume       int64  `yaml:"volume"`
	AvgVolume    int64  `yaml:"avgVolume"`
}

func convertYAML(list []yamlSnapshot) ([]Snapshot, error) {
	out := make([]Snapshot, 0, len(list))
	for _, item := range list {
		snap, err := item.toSnapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (y yamlSnapshot) toSnapshot() (Snapshot, error) {
	price, err := parseDecimal(y.CurrentPrice)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: parse currentPrice: %w", y.Symbol, err)
	}
	high, err := parseDecimal(y.PreviousHigh)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: parse previousHigh: %w", y.Symbol, err)
	}
	return Snapshot{
		Symbol:       y.Symbol,
		Name:         y.Name,
		CurrentPrice: price,
		PreviousHigh: high,
		Volume:       y.Volume,
		AvgVolume:    y.AvgVolume,
	}, nil
}

func parseDecimal(v string) (decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

var _ SnapshotSource = (*FileSource)(nil)
