package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDrinks(t *testing.T) {
	for _, tt := range []struct {
		name string
		body string
		ids  []string
	}{
		{name: "null drinks", body: `{"drinks":null}`},
		{name: "missing drinks", body: `{"other":[1,2]}`},
		{name: "non-array drinks", body: `{"drinks":"no data found"}`},
		{name: "non-object envelope", body: `[1,2,3]`},
		{name: "empty body", body: ``},
		{
			name: "numeric ids and junk rows",
			body: `{"drinks":[{"idDrink":11007,"strDrink":"Margarita"},42,null,{"idDrink":"11000","strDrink":" Mojito "}]}`,
			ids:  []string{"11007", "11000"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := decodeDrinks([]byte(tt.body))
			require.NoError(t, err)

			var got []string
			for _, r := range rows {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.ids, got)
		})
	}
}

func TestDecodeDrinks_Malformed(t *testing.T) {
	_, err := decodeDrinks([]byte(`{"drinks":[{"idDrink":"1",`))
	require.Error(t, err)
}

func TestDecodeDrink_Detail(t *testing.T) {
	rows, err := decodeDrinks([]byte(`{"drinks":[{
		"idDrink":"11007","strDrink":"Margarita","strDrinkThumb":"https://img/m.jpg",
		"strInstructions":"Rub the rim","strCategory":"Ordinary Drink",
		"strGlass":"Cocktail glass","strAlcoholic":"Alcoholic","strTags":null,"dateModified":{"x":1}
	}]}`))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	p := rows[0].detail()
	assert.True(t, p.Detail)
	assert.Equal(t, "Margarita", p.Title)
	assert.Equal(t, "https://img/m.jpg", p.Image)
	assert.Equal(t, "Rub the rim", p.Description)
	assert.Equal(t, "Ordinary Drink", p.Category)
	assert.Equal(t, "Cocktail glass", p.Glass)
	assert.Equal(t, "Alcoholic", p.Alcoholic)

	s := rows[0].summary()
	assert.False(t, s.Detail)
	assert.Empty(t, s.Description)
	assert.Empty(t, s.Category)
}

func TestDecodeRow_RequiresIDAndName(t *testing.T) {
	rows, err := decodeDrinks([]byte(`{"drinks":[{"idDrink":"1"},{"strDrink":"x"},{"idDrink":"2","strDrink":"ok"}]}`))
	require.NoError(t, err)
	assert.Len(t, summaries(rows), 1)
}

func TestDecodeDataset(t *testing.T) {
	items, err := decodeDataset([]byte(`[
		{"id":"1","title":"Margarita","image":"/m.jpg","price":12.50,"rating":4.5},
		{"id":"2"},
		{"id":3,"title":"Mojito"}
	]`))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.True(t, items[0].Price.Valid)
	assert.Equal(t, "12.5", items[0].Price.Decimal.String())
	require.NotNil(t, items[0].Rating)
	assert.InDelta(t, 4.5, *items[0].Rating, 1e-9)

	assert.Equal(t, "3", items[1].ID)
	assert.False(t, items[1].Price.Valid)
	assert.Nil(t, items[1].Rating)
}

func TestDecodeDataset_RequiresArray(t *testing.T) {
	_, err := decodeDataset([]byte(`{"items":[]}`))
	require.Error(t, err)
}

func TestDecodeCategories(t *testing.T) {
	labels, err := decodeCategories([]byte(`{"drinks":[{"strCategory":"Shot"},{"strCategory":" "},{"strCategory":"Cocktail"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Shot", "Cocktail"}, labels)

	labels, err = decodeCategories([]byte(`{"drinks":null}`))
	require.NoError(t, err)
	assert.Empty(t, labels)
}
