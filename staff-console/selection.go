package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dineqr/internal/domain"
	"dineqr/internal/pager"
)

var ErrFoodNotFound = errors.New("food not found")

// selection is one "-add" argument: foodId:portion:quantity.
type selection struct {
	FoodID   string
	Portion  string
	Quantity int
}

func parseSelection(arg string) (selection, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 3 {
		return selection{}, fmt.Errorf("selection %q: want foodId:portion:quantity", arg)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || qty < 1 {
		return selection{}, fmt.Errorf("selection %q: quantity must be a positive number", arg)
	}
	sel := selection{
		FoodID:   strings.TrimSpace(parts[0]),
		Portion:  strings.TrimSpace(parts[1]),
		Quantity: qty,
	}
	if sel.FoodID == "" || sel.Portion == "" {
		return selection{}, fmt.Errorf("selection %q: food id and portion are required", arg)
	}
	return sel, nil
}

// findFood pages through the food list until the id shows up.
func findFood(ctx context.Context, pages *pager.Pager[domain.Food], id string) (domain.Food, error) {
	for {
		for _, f := range pages.Items() {
			if f.ID == id {
				return f, nil
			}
		}
		if !pages.HasMore() {
			return domain.Food{}, fmt.Errorf("%w: %s", ErrFoodNotFound, id)
		}
		if _, err := pages.Next(ctx); err != nil {
			return domain.Food{}, err
		}
	}
}

func cartLine(food domain.Food, sel selection) (domain.CartLineItem, error) {
	for _, p := range food.Portions {
		if strings.EqualFold(p.Size, sel.Portion) {
			return domain.CartLineItem{
				ID:       food.ID,
				Name:     food.Name,
				Image:    food.Image,
				BlurHash: food.BlurHash,
				Portions: []domain.PortionSelection{{
					Size:     p.Size,
					Quantity: sel.Quantity,
					Price:    p.Price,
				}},
			}, nil
		}
	}
	return domain.CartLineItem{}, fmt.Errorf("%s has no %q portion", food.Name, sel.Portion)
}
