package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/gtgtree/gtgtree/pkg/config"
	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tasks"
)

// filterFlags are the view options shared by tree, watch and mirror.
type filterFlags struct {
	title      string
	fuzzy      bool
	status     string
	tags       []string
	blocking   bool
	actionable bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.title, "title", "t", "", "Show tasks whose title contains this text")
	fl.BoolVar(&f.fuzzy, "fuzzy", false, "Match --title fuzzily")
	fl.StringVarP(&f.status, "status", "s", "", "Show tasks with this status (active, done, dismissed)")
	fl.StringSliceVar(&f.tags, "tag", nil, "Show tasks carrying all of these tags")
	fl.BoolVar(&f.blocking, "blocking", true, "Hide matching tasks beneath a non-matching parent")
	fl.BoolVar(&f.actionable, "actionable", false, "Show only tasks that can be worked on now")
}

// resolve overlays the flags the user set onto the configured filter.
func (f *filterFlags) resolve(cmd *cobra.Command, base config.FilterConfig) config.FilterConfig {
	fc := base
	changed := cmd.Flags().Changed
	if changed("title") {
		fc.Title = f.title
	}
	if changed("fuzzy") {
		fc.Fuzzy = f.fuzzy
	}
	if changed("status") {
		fc.Status = f.status
	}
	if changed("tag") {
		fc.Tags = f.tags
	}
	if changed("blocking") {
		fc.Blocking = f.blocking
	}
	return fc
}

// predicate builds the view predicate; nil means every task is shown.
func predicate(fc config.FilterConfig, actionable bool, now time.Time) tasks.Predicate {
	var preds []tasks.Predicate
	if fc.Title != "" {
		if fc.Fuzzy {
			preds = append(preds, tasks.FuzzyTitle(fc.Title))
		} else {
			preds = append(preds, tasks.TitleContains(fc.Title))
		}
	}
	if fc.Status != "" {
		preds = append(preds, tasks.HasStatus(model.Status(fc.Status)))
	}
	if len(fc.Tags) > 0 {
		preds = append(preds, tasks.HasTags(fc.Tags...))
	}
	if actionable {
		preds = append(preds, tasks.Actionable(now))
	}
	return tasks.All(preds...)
}
