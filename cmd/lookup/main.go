package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/this-th/snomed-endoproc-lookup/internal/application/services"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/clients/snowstorm"
	"github.com/this-th/snomed-endoproc-lookup/internal/query/ecl"
	"github.com/this-th/snomed-endoproc-lookup/pkg/config"
)

func main() {
	var (
		term      string
		organ     string
		method    string
		pages     int
		printURL  bool
		conceptID string
		verbose   bool
	)
	flag.StringVar(&term, "term", "", "free-text search term")
	flag.StringVar(&organ, "organ", "", "organ system facet key")
	flag.StringVar(&method, "method", "", "procedure method facet key")
	flag.IntVar(&pages, "pages", 1, "number of result pages to load")
	flag.BoolVar(&printURL, "print-url", false, "print the compiled search URL and exit")
	flag.StringVar(&conceptID, "concept", "", "show detail, parents and children of a concept")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := snowstorm.NewClient(&cfg.Snowstorm)
	out := os.Stdout

	if conceptID != "" {
		if err := showConcept(ctx, out, services.NewDetailFetcher(client), conceptID); err != nil {
			log.Fatal().Err(err).Str("concept_id", conceptID).Msg("Lookup failed")
		}
		return
	}

	params := entities.SearchParams{Term: term, OrganSystem: organ, ProcedureMethod: method}
	if printURL {
		fmt.Fprintln(out, ecl.SearchURL(client.SearchEndpoint(), params, 0, cfg.Search.PageSize))
		return
	}

	pager := services.NewResultPager(client, cfg.Search.PageSize)
	if err := search(ctx, out, pager, params, pages); err != nil {
		log.Fatal().Err(err).Msg("Search failed")
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\n", os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintln(flag.CommandLine.Output(), "\nOrgan systems:")
	for _, e := range ecl.Entries(ecl.FacetOrganSystem) {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-24s %s\n", e.Key, e.Label)
	}
	fmt.Fprintln(flag.CommandLine.Output(), "\nProcedure methods:")
	for _, e := range ecl.Entries(ecl.FacetProcedureMethod) {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-24s %s\n", e.Key, e.Label)
	}
}

// search runs a search and loads up to pages pages, printing every concept
func search(ctx context.Context, out io.Writer, pager *services.ResultPager, params entities.SearchParams, pages int) error {
	state, err := pager.Search(ctx, params)
	if err != nil {
		return err
	}
	if state.Status == services.SearchError {
		return state.Error
	}

	for page := 1; page < pages && state.HasMore; page++ {
		state, err = pager.LoadMore(ctx)
		if err != nil {
			return err
		}
		if state.LoadMoreError != nil {
			log.Warn().Err(state.LoadMoreError).Int("loaded", len(state.Items)).Msg("Load more failed")
			break
		}
	}

	fmt.Fprintf(out, "ECL: %s\n\n", state.ECL)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONCEPT ID\tPREFERRED TERM\tLEAF")
	for _, c := range state.Items {
		leaf := "-"
		if c.IsLeafInferred != nil && *c.IsLeafInferred {
			leaf = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ConceptID, c.PT.Term, leaf)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d of %d\n", len(state.Items), state.Total)
	return nil
}

// showConcept prints the detail, parents and children of a concept. A failed
// slot is reported without hiding the others.
func showConcept(ctx context.Context, out io.Writer, fetcher *services.DetailFetcher, conceptID string) error {
	state, err := fetcher.Select(ctx, conceptID)
	if err != nil {
		return err
	}

	var errs []error
	switch state.Detail.Status {
	case services.SlotReady:
		d := state.Detail.Data
		fmt.Fprintf(out, "%s | %s |\n", d.ConceptID, d.FSN.Term)
		fmt.Fprintf(out, "Preferred term: %s\n", d.PT.Term)
		fmt.Fprintf(out, "Descendants:    %d\n", d.DescendantCount)
		if synonyms := d.ActiveSynonyms(); len(synonyms) > 0 {
			fmt.Fprintf(out, "Synonyms:       %s\n", strings.Join(synonyms, "; "))
		}
		for _, group := range d.AttributeGroups() {
			fmt.Fprintf(out, "Group %d:\n", group.GroupID)
			for _, rel := range group.Relationships {
				fmt.Fprintf(out, "  %s = %s\n", rel.Type.PT.Term, rel.Target.PT.Term)
			}
		}
	case services.SlotError:
		errs = append(errs, fmt.Errorf("detail: %w", state.Detail.Err))
	}

	printConcepts(out, "Parents", state.Parents, &errs)
	printConcepts(out, "Children", state.Children, &errs)

	return errors.Join(errs...)
}

func printConcepts(out io.Writer, heading string, slot services.Slot[[]entities.Concept], errs *[]error) {
	if slot.Status == services.SlotError {
		*errs = append(*errs, fmt.Errorf("%s: %w", strings.ToLower(heading), slot.Err))
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", heading, len(slot.Data))
	for _, c := range slot.Data {
		fmt.Fprintf(out, "  %s  %s\n", c.ConceptID, c.PT.Term)
	}
}
