package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/viant/sqlite-dedup/asset"
)

// record is one line of an import file.
type record struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Type        string    `json:"type"`
	Visibility  string    `json:"visibility"`
	StackID     string    `json:"stackId"`
	DuplicateID string    `json:"duplicateId"`
	Embedding   []float32 `json:"embedding"`
}

func (r record) asset() (asset.Asset, error) {
	typ := asset.TypeImage
	if r.Type != "" {
		var err error
		if typ, err = asset.ParseType(r.Type); err != nil {
			return asset.Asset{}, err
		}
	}
	vis, err := asset.ParseVisibility(r.Visibility)
	if err != nil {
		return asset.Asset{}, err
	}
	return asset.Asset{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Type:        typ,
		Visibility:  vis,
		StackID:     asset.Ref(r.StackID),
		DuplicateID: asset.Ref(r.DuplicateID),
		Embedding:   r.Embedding,
	}, nil
}

// readRecords decodes JSON lines into assets.
func readRecords(r io.Reader) ([]asset.Asset, error) {
	var out []asset.Asset
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		a, err := rec.asset()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, a)
	}
	return out, sc.Err()
}

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Insert or update assets from a JSON lines file",
	Long: `Each line is an object with id, ownerId, type, visibility, stackId,
duplicateId and embedding. Use "-" to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		assets, err := readRecords(in)
		if err != nil {
			return err
		}
		if err := svc.Store.Upsert(cmd.Context(), assets); err != nil {
			return err
		}
		fmt.Printf("%s imported %d assets\n", color.GreenString("✓"), len(assets))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
