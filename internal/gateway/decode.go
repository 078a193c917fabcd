package gateway

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/cocktail-catalog/internal/domain/product"
)

// drink is one row of the remote `drinks` array. Only the fields this service
// reads are kept.
type drink struct {
	ID           string
	Name         string
	Thumb        string
	Instructions string
	Category     string
	Glass        string
	Alcoholic    string
}

func (d drink) valid() bool {
	return d.ID != "" && d.Name != ""
}

func (d drink) summary() product.Product {
	return product.Product{
		ID:    d.ID,
		Title: d.Name,
		Image: d.Thumb,
	}
}

func (d drink) detail() product.Product {
	return product.Product{
		ID:          d.ID,
		Title:       d.Name,
		Image:       d.Thumb,
		Description: d.Instructions,
		Category:    d.Category,
		Glass:       d.Glass,
		Alcoholic:   d.Alcoholic,
		Detail:      true,
	}
}

// decodeDrinks reads a `{"drinks": [...] | null}` envelope. A non-object
// envelope or a missing, null or non-array `drinks` field yields no rows, and
// non-object rows are skipped. Broken JSON inside the envelope is an error.
func decodeDrinks(data []byte) ([]drink, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return nil, nil
	}

	var rows []drink
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "drinks" || d.Next() != jx.Array {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			if d.Next() != jx.Object {
				return d.Skip()
			}
			row, err := decodeDrink(d)
			if err != nil {
				return err
			}
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode drinks")
	}
	return rows, nil
}

func decodeDrink(d *jx.Decoder) (drink, error) {
	var row drink
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "idDrink":
			dst = &row.ID
		case "strDrink":
			dst = &row.Name
		case "strDrinkThumb":
			dst = &row.Thumb
		case "strInstructions":
			dst = &row.Instructions
		case "strCategory":
			dst = &row.Category
		case "strGlass":
			dst = &row.Glass
		case "strAlcoholic":
			dst = &row.Alcoholic
		default:
			return d.Skip()
		}
		v, err := readString(d)
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		*dst = strings.TrimSpace(v)
		return nil
	})
	return row, err
}

// readString accepts strings, numbers and null, skipping anything else.
func readString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", d.Skip()
	}
}

// decodeDataset reads the bundled dataset: a JSON array of summary products
// using this service's own field names.
func decodeDataset(data []byte) ([]product.Product, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Array {
		return nil, errors.New("dataset must be a JSON array")
	}

	var items []product.Product
	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		p, err := decodeDatasetItem(d)
		if err != nil {
			return err
		}
		if p.ID == "" || p.Title == "" {
			return nil
		}
		items = append(items, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode dataset")
	}
	return items, nil
}

func decodeDatasetItem(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := readString(d)
			p.ID = v
			return err
		case "title":
			v, err := readString(d)
			p.Title = v
			return err
		case "image":
			v, err := readString(d)
			p.Image = v
			return err
		case "price":
			if d.Next() != jx.Number {
				return d.Skip()
			}
			n, err := d.Num()
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(n.String())
			if err != nil {
				return errors.Wrap(err, "price")
			}
			p.Price = decimal.NewNullDecimal(price)
			return nil
		case "rating":
			if d.Next() != jx.Number {
				return d.Skip()
			}
			r, err := d.Float64()
			if err != nil {
				return err
			}
			p.Rating = &r
			return nil
		default:
			return d.Skip()
		}
	})
	return p, err
}

// decodeCategories reads the `strCategory` labels of the category listing
// endpoint, with the same tolerance rules as decodeDrinks.
func decodeCategories(data []byte) ([]string, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return nil, nil
	}

	var out []string
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "drinks" || d.Next() != jx.Array {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "strCategory" {
					return d.Skip()
				}
				v, err := readString(d)
				if err != nil {
					return err
				}
				if v = strings.TrimSpace(v); v != "" {
					out = append(out, v)
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode categories")
	}
	return out, nil
}
