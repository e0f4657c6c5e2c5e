package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/olliezdai13/SmartFridge/constants"
	"github.com/olliezdai13/SmartFridge/internal/llm"
	"github.com/olliezdai13/SmartFridge/internal/repository"
)

// Categorizer assigns categories to uncategorized catalog products in
// batches. A batch is all-or-nothing: one bad assignment in the reply and no
// product in the batch is touched.
type Categorizer struct {
	products   repository.ProductRepository
	vision     llm.VisionClient
	batchLimit int
	logger     *slog.Logger
}

func NewCategorizer(products repository.ProductRepository, vision llm.VisionClient, batchLimit int, logger *slog.Logger) *Categorizer {
	if batchLimit <= 0 {
		batchLimit = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Categorizer{products: products, vision: vision, batchLimit: batchLimit, logger: logger}
}

// Run categorizes one batch. Returns how many products were updated and how
// many uncategorized products were found.
func (c *Categorizer) Run(ctx context.Context) (updated int, total int, err error) {
	start := time.Now()

	prods, err := c.products.ListUncategorized(ctx, c.batchLimit)
	if err != nil {
		return 0, 0, err
	}
	if len(prods) == 0 {
		c.logger.Info("categorize.nothing_to_do")
		return 0, 0, nil
	}

	names := make([]string, len(prods))
	for i, p := range prods {
		names[i] = p.Name
	}

	raw, err := c.vision.RunPrompt(ctx, llm.BuildCategorizationPrompt(names))
	if err != nil {
		return 0, len(prods), err
	}

	assignments, err := c.parse(raw, names)
	if err != nil {
		c.logger.Warn("categorize.batch_rejected", "products", len(prods), "error", err)
		return 0, len(prods), err
	}

	updated, err = c.products.ApplyCategories(ctx, assignments)
	if err != nil {
		return 0, len(prods), err
	}

	c.logger.Info("categorize.ok",
		"products", len(prods),
		"updated", updated,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return updated, len(prods), nil
}

// parse validates the reply strictly against the batch schema first, falling
// back to case and word-separator normalization ("Protein Foods") when the
// model got the spelling right but not the exact enum form. Synonyms still
// reject the batch.
func (c *Categorizer) parse(raw string, names []string) (map[string]constants.Category, error) {
	text := llm.StripCodeFences(raw)
	if err := llm.ValidateJSONAgainstSchema(llm.BuildCategorizationSchema(names), []byte(text)); err == nil {
		return llm.ParseCategories(text, names)
	}
	assignments, err := llm.ParseCategories(text, names)
	if err != nil {
		return nil, err
	}
	c.logger.Warn("categorize.lenient_parse_applied", "products", len(names))
	return assignments, nil
}
