package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/glide-the/RAGFlowMCP/internal/appstate"
	"github.com/glide-the/RAGFlowMCP/internal/config"
	"github.com/glide-the/RAGFlowMCP/internal/ragflow"
)

type retrieveFlags struct {
	datasets  []string
	documents []string
	page      int
	pageSize  int
	topK      int
	threshold float64
	weight    float64
	keyword   bool
	highlight bool
	useKG     bool
}

func newRetrieveCmd(g *GlobalFlags) *cobra.Command {
	f := &retrieveFlags{}
	cmd := &cobra.Command{
		Use:   "retrieve <question>",
		Short: "Run one Ragflow retrieval query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetrieve(cmd, g, f, args[0])
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVar(&f.datasets, "dataset", nil, "dataset id to search (repeatable)")
	fl.StringSliceVar(&f.documents, "document", nil, "document id to search (repeatable)")
	fl.IntVar(&f.page, "page", ragflow.DefaultPage, "result page")
	fl.IntVar(&f.pageSize, "page-size", ragflow.DefaultPageSize, "results per page")
	fl.IntVar(&f.topK, "top-k", ragflow.DefaultTopK, "maximum chunks to consider")
	fl.Float64Var(&f.threshold, "similarity-threshold", ragflow.DefaultSimilarityThreshold, "minimum similarity")
	fl.Float64Var(&f.weight, "vector-similarity-weight", ragflow.DefaultVectorSimilarityWeight, "weight of vector similarity in ranking")
	fl.BoolVar(&f.keyword, "keyword", false, "enable keyword retrieval")
	fl.BoolVar(&f.highlight, "highlight", false, "include highlight snippets")
	fl.BoolVar(&f.useKG, "use-kg", false, "use knowledge graph retrieval")
	return cmd
}

func runRetrieve(cmd *cobra.Command, g *GlobalFlags, f *retrieveFlags, question string) error {
	req := ragflow.RetrievalRequest{
		Question:               strings.TrimSpace(question),
		DatasetIDs:             f.datasets,
		DocumentIDs:            f.documents,
		Page:                   f.page,
		PageSize:               f.pageSize,
		SimilarityThreshold:    f.threshold,
		VectorSimilarityWeight: f.weight,
		TopK:                   f.topK,
		Keyword:                f.keyword,
		Highlight:              f.highlight,
		UseKG:                  f.useKG,
	}
	if err := req.WithDefaults().Validate(); err != nil {
		return withExit(ExitGenericError, err)
	}

	cfg, err := loadConfig(g, nil, false)
	if err != nil {
		return err
	}
	if err := config.RequireRagflowKey(cfg); err != nil {
		return withExit(ExitConfigInvalid, err)
	}
	app, err := appstate.New(cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return withExit(ExitConfigInvalid, err)
	}

	resp, err := app.Ragflow.Retrieve(cmd.Context(), req)
	if err != nil {
		return err
	}
	summary := ragflow.Summarize(resp)

	out := cmd.OutOrStdout()
	if g.JSON {
		return json.NewEncoder(out).Encode(summary)
	}

	s := newStyles(out, false)
	fmt.Fprintln(out, s.sectionHeader(fmt.Sprintf("%d chunks", summary.Total)))
	for i, c := range summary.Chunks {
		label := fmt.Sprintf("%d)", i+1)
		var meta []string
		if c.Similarity != nil {
			meta = append(meta, s.stat("similarity", fmt.Sprintf("%.3f", *c.Similarity)))
		}
		if c.DocKeyword != nil {
			meta = append(meta, s.stat("doc", *c.DocKeyword))
		}
		fmt.Fprintln(out, s.Brand.Render(label), strings.Join(meta, " "))
		body := c.Content
		if c.Highlight != nil && *c.Highlight != "" {
			body = *c.Highlight
		}
		fmt.Fprintln(out, "   "+strings.TrimSpace(body))
	}
	if len(summary.DocAggs) > 0 {
		fmt.Fprintln(out, s.separator(40))
		for _, d := range summary.DocAggs {
			fmt.Fprintln(out, s.kv(d.DocName, fmt.Sprintf("%d", d.Count)))
		}
	}
	return nil
}
