package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"cookflow/internal/billing"
	"cookflow/internal/recipes"
)

func extractCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract a recipe from a video or recipe page URL",
		ArgsUsage: "URL",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "pro",
				Usage: "Treat the user as a subscriber (no free quota)",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "User id for the entitlement lookup",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Extract,
	}
}

func recipesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "recipes",
		Usage: "Saved recipes",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved recipes",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.RecipesList,
			},
			{
				Name:      "show",
				Usage:     "Show one recipe",
				ArgsUsage: "ID",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.RecipesShow,
			},
			{
				Name:      "delete",
				Usage:     "Delete a recipe; its grocery items stay on the list",
				ArgsUsage: "ID",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.RecipesDelete,
			},
		},
	}
}

func groceryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "grocery",
		Aliases: []string{"g"},
		Usage:   "Grocery list",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a recipe's ingredients to the grocery list",
				ArgsUsage: "RECIPE_ID",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.GroceryAdd,
			},
			{
				Name:  "list",
				Usage: "Show the grocery list by category",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.GroceryList,
			},
			{
				Name:      "toggle",
				Usage:     "Check or uncheck an item",
				ArgsUsage: "ITEM_ID",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.GroceryToggle,
			},
			{
				Name:   "clear",
				Usage:  "Remove checked items",
				Action: r.GroceryClear,
			},
		},
	}
}

func quotaCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "quota",
		Usage: "Show free extractions used this month",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "User id for the entitlement lookup"},
		},
		Action: r.Quota,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Address to bind",
				Value: ":8080",
			},
		},
		Action: r.Serve,
	}
}

func (r *Runner) Extract(ctx context.Context, cmd *cli.Command) error {
	ent := r.billing
	if cmd.Bool("pro") {
		ent = billing.Static(true)
	}
	p, err := r.pipeline(ctx, ent)
	if err != nil {
		return err
	}

	res, err := p.Extract(ctx, recipes.Request{URL: cmd.StringArg("url"), UserID: cmd.String("user")})
	var qe *recipes.QuotaExceededError
	if errors.As(err, &qe) {
		return cli.Exit(recipes.UserMessage(err)+". Upgrade to Pro for unlimited extractions.", 2)
	}
	if err != nil {
		return cli.Exit("Extraction Failed: "+recipes.UserMessage(err), 1)
	}

	if cmd.Bool("json") {
		return r.writeJSON(res)
	}
	if !res.Saved {
		r.logger.Warn("recipe could not be saved")
	}
	if err := r.writePlainln("%s", renderRecipe(res.Recipe)); err != nil {
		return err
	}
	if !res.Pro {
		return r.writePlainln("%s", styles.help.Render(fmt.Sprintf("%d of %d free extractions used this month", res.Quota.Used, res.Quota.Limit)))
	}
	return nil
}

func (r *Runner) RecipesList(ctx context.Context, cmd *cli.Command) error {
	list, err := r.store.Recipes(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(list)
	}
	added, err := r.store.AddedRecipes(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return r.writePlainln("No recipes yet. Try: cookflow extract URL")
	}
	return r.writePlainln("%s", renderRecipeList(list, added))
}

func (r *Runner) RecipesShow(ctx context.Context, cmd *cli.Command) error {
	recipe, err := r.store.Recipe(ctx, cmd.StringArg("id"))
	if err != nil {
		return err
	}
	return r.writePlainln("%s", renderRecipe(recipe))
}

func (r *Runner) RecipesDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := r.store.DeleteRecipe(ctx, id); err != nil {
		return err
	}
	return r.writePlainln("%s", styles.ok.Render("✓ Deleted recipe "+id))
}

func (r *Runner) GroceryAdd(ctx context.Context, cmd *cli.Command) error {
	recipe, err := r.store.Recipe(ctx, cmd.StringArg("id"))
	if err != nil {
		return err
	}
	n, err := r.store.AddToGroceryList(ctx, *recipe)
	if err != nil {
		return err
	}
	return r.writePlainln("%s", styles.ok.Render(fmt.Sprintf("✓ Added %d items from %s", n, recipe.Title)))
}

func (r *Runner) GroceryList(ctx context.Context, cmd *cli.Command) error {
	list, err := r.store.GroceryList(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(recipes.GroupByCategory(list))
	}
	return r.writePlainln("%s", renderGrocery(list))
}

func (r *Runner) GroceryToggle(ctx context.Context, cmd *cli.Command) error {
	entry, err := r.store.ToggleItem(ctx, cmd.StringArg("id"))
	if err != nil {
		return err
	}
	return r.writePlainln("%s", renderEntry(*entry))
}

func (r *Runner) GroceryClear(ctx context.Context, _ *cli.Command) error {
	n, err := r.store.ClearChecked(ctx)
	if err != nil {
		return err
	}
	return r.writePlainln("%s", styles.ok.Render(fmt.Sprintf("✓ Removed %d checked items", n)))
}

func (r *Runner) Quota(ctx context.Context, cmd *cli.Command) error {
	pro := billing.CheckPro(ctx, r.billing, cmd.String("user"))
	d := r.gate.CanExtractFree(ctx, pro)
	if pro {
		return r.writePlainln("%s", styles.ok.Render("Pro: unlimited extractions"))
	}
	line := fmt.Sprintf("%d of %d free extractions used this month", d.Used, d.Limit)
	if !d.Allowed {
		return r.writePlainln("%s", styles.warn.Render(line+" (limit reached)"))
	}
	return r.writePlainln("%s", line)
}
