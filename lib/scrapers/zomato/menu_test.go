package zomato

import (
	"context"
	"fmt"
	"testing"
	"time"

	"harvest-backend/lib/browser"
	"harvest-backend/lib/chrono"
	"harvest-backend/lib/extract"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

type staticMenuPage struct {
	browser.StaticPage
	navigated string
}

func (p *staticMenuPage) Navigate(ctx context.Context, url string, opts browser.NavigateOptions) error {
	p.navigated = url
	return nil
}

func newStaticMenuPage(t *testing.T, html string) *staticMenuPage {
	page, err := browser.NewStaticPageFromString(html)
	require.NoError(t, err)
	return &staticMenuPage{StaticPage: page}
}

const menuHTML = `<html><body>
<h4 class="sc-1hp8d8a-0">Starters</h4>
<div class="sc-bsBFbB iDOlyD">
	<div class="sc-jRTQlX" type="non-veg"></div>
	<h4 class="sc-gsxalj">Chicken Wings</h4>
	<p class="sc-bPzAnn dRgPyk">Six wings</p>
	<span class="sc-17hyc2s-1">AED 45</span>
	<div class="sc-s1isp7-1 kmRBaC"><img src="https://b.zmtcdn.com/wings.jpg?fit=around"></div>
</div>
<div class="sc-bsBFbB iDOlyD">
	<h4 class="sc-gsxalj">Hummus</h4>
	<span class="sc-17hyc2s-3">AED 20</span>
</div>
<h4 class="sc-1hp8d8a-0">Desserts</h4>
<div class="sc-bsBFbB iDOlyD">
	<div class="sc-jRTQlX" type="veg"></div>
	<h4 class="sc-gsxalj">Kunafa</h4>
	<span class="sc-17hyc2s-2">AED 30</span>
	<img class="sc-s1isp7-5 xyz" data-src="https://b.zmtcdn.com/kunafa.jpg">
</div>
</body></html>`

func TestScrapeMenuPage(t *testing.T) {
	page := newStaticMenuPage(t, menuHTML)
	clock := chrono.FixedImpl{At: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}

	doc, err := ScrapeMenuPage(context.Background(), page, "https://zomato.com/x/order", extract.LoopConfig{}, clock)
	require.NoError(t, err)
	require.Equal(t, "https://zomato.com/x/order", page.navigated)
	require.Equal(t, clock.At, doc.Timestamp)

	require.Len(t, doc.Menu, 2)
	require.Equal(t, "Starters", doc.Menu[0].Section)
	require.Equal(t, "Desserts", doc.Menu[1].Section)

	wings := doc.Menu[0].Items[0]
	require.Equal(t, "Chicken Wings", wings["title"])
	require.Equal(t, "45", wings["price"])
	require.Equal(t, "non-veg", wings["type"])
	require.Equal(t, true, wings["isNonVeg"])
	require.Equal(t, "https://b.zmtcdn.com/wings.jpg", wings["imageUrl"])

	hummus := doc.Menu[0].Items[1]
	require.Equal(t, "veg", hummus["type"])
	require.Equal(t, false, hummus["isNonVeg"])
	require.Nil(t, hummus["imageUrl"])
	require.Nil(t, hummus["description"])

	kunafa := doc.Menu[1].Items[0]
	require.Equal(t, "https://b.zmtcdn.com/kunafa.jpg", kunafa["imageUrl"])

	require.Equal(t, Stats{
		TotalItems:      3,
		VegItems:        2,
		NonVegItems:     1,
		ItemsWithImages: 2,
	}, doc.Stats)
}

func TestScrapeMenuPageWithoutItems(t *testing.T) {
	page := newStaticMenuPage(t, `<html><body><p>closed</p></body></html>`)

	doc, err := ScrapeMenuPage(context.Background(), page, "https://zomato.com/y/order", extract.LoopConfig{}, chrono.NewStandardImpl())
	require.NoError(t, err)
	require.NotNil(t, doc.Menu)
	require.Empty(t, doc.Menu)
	require.Equal(t, 0, doc.Stats.TotalItems)
}

func TestMenuTargetIsValid(t *testing.T) {
	require.NoError(t, MenuTarget.Validate())
}

// readMorePage shows a truncated description until it has been queried once.
type readMorePage struct {
	queries int
}

func (p *readMorePage) Navigate(ctx context.Context, url string, opts browser.NavigateOptions) error {
	return nil
}

func (p *readMorePage) Query(ctx context.Context, selector string) ([]*goquery.Selection, error) {
	description := "Slow cooked lamb with..."
	if p.queries > 0 {
		description = "Slow cooked lamb with saffron rice and roasted nuts."
	}
	p.queries++
	page, err := browser.NewStaticPageFromString(fmt.Sprintf(`<html><body>
		<h4 class="sc-1hp8d8a-0">Mains</h4>
		<div class="sc-bsBFbB iDOlyD">
			<h4 class="sc-gsxalj">Lamb Ouzi</h4>
			<p class="sc-bPzAnn dRgPyk">%s</p>
			<span class="sc-17hyc2s-1">AED 65</span>
		</div>
	</body></html>`, description))
	if err != nil {
		return nil, err
	}
	return page.Query(ctx, selector)
}

func (p *readMorePage) Reveal(ctx context.Context, action browser.RevealAction) error {
	return nil
}

func TestScrapeMenuPageLateReadMoreKeepsOneItem(t *testing.T) {
	page := &readMorePage{}

	doc, err := ScrapeMenuPage(context.Background(), page, "https://zomato.com/z/order", extract.LoopConfig{}, chrono.NewStandardImpl())
	require.NoError(t, err)
	require.Greater(t, page.queries, 1)
	require.Len(t, doc.Menu, 1)
	require.Len(t, doc.Menu[0].Items, 1)
	require.Equal(t, "Lamb Ouzi", doc.Menu[0].Items[0]["title"])
	require.Equal(t, 1, doc.Stats.TotalItems)
}
