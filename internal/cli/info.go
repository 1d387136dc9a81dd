package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/adapter/store"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe the stored corpus",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	st := store.NewBoltCorpusStore(cfg.Corpus.Path)

	corpus, err := st.Load()
	if err != nil {
		return err
	}
	info := corpus.Info

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Corpus:     %s\n", info.ID)
	fmt.Fprintf(out, "Path:       %s\n", st.Path())
	fmt.Fprintf(out, "Created:    %s\n", info.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Model:      %s (dimension %d)\n", info.Model, info.Dimension)
	fmt.Fprintf(out, "Chunking:   %d characters, %d overlap\n", info.ChunkSize, info.ChunkOverlap)
	fmt.Fprintf(out, "Chunks:     %d\n", info.Size)

	names := make([]string, 0, len(info.Sources))
	for name := range info.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-40s %d\n", name, info.Sources[name])
	}
	return nil
}
