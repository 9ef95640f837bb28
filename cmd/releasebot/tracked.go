package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/amaumene/releasebot/internal/models"
	"github.com/spf13/cobra"
)

func newTrackedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tracked",
		Short: "List tracked movies and shows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return printTracked(cmd.Context(), cmd.OutOrStdout(), a.store)
		},
	}
}

func printTracked(ctx context.Context, out io.Writer, store models.Store) error {
	movies, err := store.ListMovies(ctx)
	if err != nil {
		return fmt.Errorf("failed to list movies: %w", err)
	}
	shows, err := store.ListShows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list shows: %w", err)
	}

	rows := make([][]string, 0, len(movies)+len(shows))
	for _, m := range movies {
		rows = append(rows, []string{
			string(models.MediaTypeMovie),
			strconv.FormatInt(m.ID, 10),
			m.Title,
			"-",
			strconv.Itoa(len(m.Subscribers)),
		})
	}
	for _, s := range shows {
		rows = append(rows, []string{
			string(models.MediaTypeTV),
			strconv.FormatInt(s.ID, 10),
			s.Title,
			fmt.Sprintf("S%02dE%02d", s.LastSeason, s.LastEpisode),
			strconv.Itoa(len(s.Subscribers)),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][2] < rows[j][2]
	})

	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "Nothing is tracked")
		return err
	}

	_, err = fmt.Fprintln(out, renderTable(
		[]string{"Type", "TMDB ID", "Title", "Last announced", "Subscribers"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	))
	return err
}
