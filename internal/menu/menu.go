package menu

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"fastfoot/internal/domain"
)

// Entry is one line of menu.txt: "category;product;price".
type Entry struct {
	Category string
	Name     string
	Price    float64
}

// ParseFile reads a menu file, skipping blank and malformed lines the way
// the floor staff's hand-edited files require.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open menu file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.Split(strings.TrimSpace(sc.Text()), ";")
		if len(parts) != 3 {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil || price < 0 {
			continue
		}
		entries = append(entries, Entry{
			Category: strings.TrimSpace(parts[0]),
			Name:     strings.TrimSpace(parts[1]),
			Price:    price,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read menu file: %w", err)
	}
	return entries, nil
}

// Group arranges entries by category, preserving file order within each.
func Group(entries []Entry) domain.Menu {
	out := make(domain.Menu)
	for _, e := range entries {
		out[e.Category] = append(out[e.Category], domain.MenuItem{Name: e.Name, Price: e.Price})
	}
	return out
}

// LoadFile is ParseFile + Group; a missing file yields a single placeholder
// category so a bare install still has something to sell.
func LoadFile(path string) (domain.Menu, error) {
	entries, err := ParseFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Menu{"Genel": {{Name: "Örnek Ürün", Price: 100}}}, nil
		}
		return nil, err
	}
	return Group(entries), nil
}
