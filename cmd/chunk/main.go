// Command chunk extracts documents and prints the chunks the ingest pipeline
// would embed, without touching the database or the vector store.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"docqa/config"
	"docqa/internal/chunker"
	coreingest "docqa/internal/core/ingest"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	maxChunkSize int
	chunkOverlap int
	tokenizer    string
	outputJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "chunk <file>...",
	Short: "Split documents into overlapping token-bounded chunks",
	Long: `Extract text from pdf, docx, pptx or txt files and split it into chunks.

Chunk sizes default to the chunking section of the config file and can be
overridden with flags.

Examples:
  chunk data/doc.docx
  chunk --max 128 --overlap 16 notes.txt
  chunk --tokenizer words --json slides.pptx | jq .`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChunk,
}

type chunkOutput struct {
	Source     string `json:"source"`
	ChunkID    int    `json:"chunk_id"`
	TokenCount int    `json:"token_count"`
	Text       string `json:"text"`
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "config file")
	rootCmd.Flags().IntVar(&maxChunkSize, "max", 0, "max chunk size in tokens (default from config)")
	rootCmd.Flags().IntVar(&chunkOverlap, "overlap", 0, "chunk overlap in tokens (default from config)")
	rootCmd.Flags().StringVar(&tokenizer, "tokenizer", "", `model or encoding name, or "words" (default from config)`)
	rootCmd.Flags().BoolVar(&outputJSON, "json", false, "print chunks as JSON lines")
}

func runChunk(cmd *cobra.Command, args []string) error {
	if err := config.Init(configPath); err != nil {
		return err
	}
	cfg := chunker.Config{
		MinChunkSize: config.Cfg.Chunking.MinChunkSize,
		MaxChunkSize: config.Cfg.Chunking.MaxChunkSize,
		ChunkOverlap: config.Cfg.Chunking.ChunkOverlap,
	}
	if cmd.Flags().Changed("max") {
		cfg.MaxChunkSize = maxChunkSize
	}
	if cmd.Flags().Changed("overlap") {
		cfg.ChunkOverlap = chunkOverlap
	}
	model := tokenizer
	if model == "" {
		model = config.Cfg.Chunking.TokenizerModel
	}

	var tok chunker.Tokenizer = chunker.WordCounter{}
	if model != "words" {
		tc, err := chunker.NewTiktokenCounter(model)
		if err != nil {
			return err
		}
		tok = tc
	}
	ck, err := chunker.New(cfg, tok, chunker.UnicodeSentenceSplitter{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	for _, path := range args {
		docs, err := coreingest.Extract(path)
		if err != nil {
			return err
		}
		records, err := coreingest.BuildRecords(docs, ck)
		if err != nil {
			return err
		}
		for _, r := range records {
			n, err := tok.CountTokens(r.Text)
			if err != nil {
				return err
			}
			if outputJSON {
				if err := enc.Encode(chunkOutput{Source: r.Source(), ChunkID: r.ChunkID, TokenCount: n, Text: r.Text}); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(out, "--- %s #%d (%d tokens)\n%s\n", r.Source(), r.ChunkID, n, r.Text)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
