package zomato

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"harvest-backend/lib/extract"
)

const menusPath = "page_data.order.menuList.menus"

// flexString accepts both JSON strings and numbers, prices come as either
// depending on the restaurant.
type flexString struct {
	value string
	// a JSON number equal to 0, which does not count as set when falling
	// back between prices
	zero bool
}

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		if err != nil {
			return err
		}
		f.value = s
		return nil
	}
	var n json.Number
	err := json.Unmarshal(data, &n)
	if err != nil {
		return fmt.Errorf("price is neither a string nor a number: %s", data)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		f.value = strconv.FormatInt(i, 10)
		f.zero = i == 0
		return nil
	}
	f.value = n.String()
	if v, err := n.Float64(); err == nil && v == 0 {
		f.zero = true
	}
	return nil
}

func (f flexString) set() bool {
	return f.value != "" && !f.zero
}

type rawInfoTag struct {
	Title *struct {
		Text string `json:"text"`
	} `json:"title"`
}

type rawItem struct {
	Name         string       `json:"name"`
	Desc         string       `json:"desc"`
	DisplayPrice flexString   `json:"display_price"`
	DefaultPrice flexString   `json:"default_price"`
	Price        flexString   `json:"price"`
	TagSlugs     []string     `json:"tag-slugs"`
	ItemImageUrl string       `json:"item_image_url"`
	InfoTags     []rawInfoTag `json:"info_tags"`
	ItemState    string       `json:"item_state"`
}

type rawCategory struct {
	Category struct {
		Name  string `json:"name"`
		Items []struct {
			Item rawItem `json:"item"`
		} `json:"items"`
	} `json:"category"`
}

type rawMenu struct {
	Menu struct {
		Name       string        `json:"name"`
		Categories []rawCategory `json:"categories"`
	} `json:"menu"`
}

type rawResponse struct {
	PageData *struct {
		Order *struct {
			MenuList *struct {
				Menus *[]rawMenu `json:"menus"`
			} `json:"menuList"`
		} `json:"order"`
	} `json:"page_data"`
}

func (r rawResponse) menus() ([]rawMenu, bool) {
	if r.PageData == nil ||
		r.PageData.Order == nil ||
		r.PageData.Order.MenuList == nil ||
		r.PageData.Order.MenuList.Menus == nil {
		return nil, false
	}
	return *r.PageData.Order.MenuList.Menus, true
}

func infoTag(tags []rawInfoTag, i int) string {
	if i >= len(tags) || tags[i].Title == nil || tags[i].Title.Text == "" {
		return "Not specified"
	}
	return tags[i].Title.Text
}

// firstSet returns the first value that is set, a missing value, an empty
// string and a numeric 0 all fall through. When none is set the last value
// is used as is.
func firstSet(values ...flexString) string {
	for _, v := range values {
		if v.set() {
			return v.value
		}
	}
	return values[len(values)-1].value
}

func transformItem(item rawItem) extract.Record {
	var price any
	if raw := firstSet(item.DisplayPrice, item.DefaultPrice, item.Price); raw != "" {
		cleaned, err := extract.StripCurrency(raw)
		if err == nil {
			price = cleaned
		}
	}

	itemType := "unknown"
	if len(item.TagSlugs) > 0 && item.TagSlugs[0] != "" {
		itemType = item.TagSlugs[0]
	}

	return extract.Record{
		"name":           item.Name,
		"description":    item.Desc,
		"price":          price,
		"type":           itemType,
		"imageUrl":       item.ItemImageUrl,
		"serves":         infoTag(item.InfoTags, 0),
		"preparing_time": infoTag(item.InfoTags, 1),
		"status":         item.ItemState,
	}
}

// TransformMenu reduces a getPage response to one section per menu with the
// items of all its categories. A response without a menu list returns a
// *extract.ShapeMismatchError.
func TransformMenu(raw []byte) ([]extract.Section, error) {
	var res rawResponse
	err := json.Unmarshal(raw, &res)
	if err != nil {
		return nil, fmt.Errorf("decode menu response: %w", err)
	}
	menus, ok := res.menus()
	if !ok {
		return nil, &extract.ShapeMismatchError{Path: menusPath}
	}

	sections := make([]extract.Section, 0, len(menus))
	for _, menu := range menus {
		items := []extract.Record{}
		for _, category := range menu.Menu.Categories {
			for _, entry := range category.Category.Items {
				items = append(items, transformItem(entry.Item))
			}
		}
		sections = append(sections, extract.Section{
			Section: menu.Menu.Name,
			Items:   items,
		})
	}
	return sections, nil
}
