package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cookflow/internal/ai"
	"cookflow/internal/recipes"
)

var styles = newPalette("#E85E1F", "#04B575", "#FFA500", "#626262")

type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func newPalette(t, s, w, h string) *palette {
	return &palette{
		title: newStyle(t).Bold(true),
		ok:    newStyle(s).Bold(true),
		warn:  newStyle(w),
		help:  newStyle(h).Italic(true),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

var titleCase = cases.Title(language.English)

func renderRecipe(r *ai.Recipe) string {
	var b strings.Builder
	b.WriteString(styles.title.Render(r.Title) + "\n")

	var meta []string
	if r.Servings != nil && *r.Servings > 0 {
		meta = append(meta, fmt.Sprintf("serves %d", *r.Servings))
	}
	if r.PrepTime != "" {
		meta = append(meta, "prep "+r.PrepTime)
	}
	if r.CookTime != "" {
		meta = append(meta, "cook "+r.CookTime)
	}
	if len(meta) > 0 {
		b.WriteString(styles.help.Render(strings.Join(meta, " · ")) + "\n")
	}

	b.WriteString("\nIngredients\n")
	for _, ing := range r.Ingredients {
		b.WriteString("  • " + recipes.FormatGroceryItemLabel(ing) + "\n")
	}
	b.WriteString("\nInstructions\n")
	for i, step := range r.Instructions {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}
	if len(r.Tags) > 0 {
		b.WriteString("\n" + styles.help.Render("#"+strings.Join(r.Tags, " #")) + "\n")
	}
	if r.ID != "" {
		b.WriteString(styles.help.Render("id "+r.ID) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRecipeList(list []ai.Recipe, added []string) string {
	var b strings.Builder
	for _, r := range list {
		mark := ""
		if slices.Contains(added, r.ID) {
			mark = styles.ok.Render(" ✓ on grocery list")
		}
		fmt.Fprintf(&b, "%s  %s%s\n", styles.help.Render(r.ID), styles.title.Render(r.Title), mark)
		fmt.Fprintf(&b, "    %d ingredients · %s\n", len(r.Ingredients), r.SourceURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEntry(g recipes.GroceryEntry) string {
	box := "[ ]"
	label := g.Label()
	if g.Checked {
		box = "[x]"
		label = styles.help.Render(label)
	}
	return fmt.Sprintf("%s %s  %s", box, label, styles.help.Render(g.ID))
}

func renderGrocery(list []recipes.GroceryEntry) string {
	sum := recipes.Summarize(list)
	var b strings.Builder
	b.WriteString(styles.title.Render("Grocery List") + "  " + styles.help.Render(sum.String()) + "\n")
	for _, group := range recipes.GroupByCategory(list) {
		b.WriteString("\n" + styles.ok.Render(titleCase.String(string(group.Category))) + "\n")
		for _, g := range group.Items {
			b.WriteString("  " + renderEntry(g) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
