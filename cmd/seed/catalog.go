package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var requiredColumns = []string{"_id", "title", "price"}

func readProductsFromXLSX(filePath string) ([]model.Product, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("sheet %s has no header row", sheetName)
	}

	return parseProductRows(rows)
}

// parseProductRows maps rows to products using the header row. Rows with an
// empty _id are skipped; any other malformed cell fails the whole import.
func parseProductRows(rows [][]string) ([]model.Product, error) {
	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	products := make([]model.Product, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		id := cell(row, "_id")
		if id == "" {
			continue
		}

		price, err := decimal.NewFromString(cell(row, "price"))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid price %q", line, cell(row, "price"))
		}

		product := model.Product{
			ID:          id,
			Title:       cell(row, "title"),
			Description: cell(row, "description"),
			ImageCover:  cell(row, "imageCover"),
			Price:       price,
		}

		if raw := cell(row, "priceAfterDiscount"); raw != "" {
			discounted, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid priceAfterDiscount %q", line, raw)
			}
			product.PriceAfterDiscount = &discounted
		}

		if raw := cell(row, "quantity"); raw != "" {
			quantity, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid quantity %q", line, raw)
			}
			product.Quantity = quantity
		}

		products = append(products, product)
	}
	return products, nil
}
