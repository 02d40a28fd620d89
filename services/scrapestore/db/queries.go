package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Menu struct {
	Subdomain string
	MenuData  string
	CreatedAt int64
	UpdatedAt int64
}

const upsertMenu = `
insert into menus (subdomain, menu_data, created_at, updated_at)
values (?, ?, ?, ?)
on conflict (subdomain) do update set
    menu_data = excluded.menu_data,
    updated_at = excluded.updated_at
`

type UpsertMenuParams struct {
	Subdomain string
	MenuData  string
	Now       int64
}

func (q *Queries) UpsertMenu(ctx context.Context, arg UpsertMenuParams) error {
	_, err := q.db.ExecContext(ctx, upsertMenu, arg.Subdomain, arg.MenuData, arg.Now, arg.Now)
	return err
}

const getMenu = `
select subdomain, menu_data, created_at, updated_at from menus
where subdomain = ?
`

func (q *Queries) GetMenu(ctx context.Context, subdomain string) (Menu, error) {
	row := q.db.QueryRowContext(ctx, getMenu, subdomain)
	var i Menu
	err := row.Scan(&i.Subdomain, &i.MenuData, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listMenuSubdomains = `
select subdomain from menus order by subdomain
`

func (q *Queries) ListMenuSubdomains(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listMenuSubdomains)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var subdomain string
		if err := rows.Scan(&subdomain); err != nil {
			return nil, err
		}
		items = append(items, subdomain)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type ScrapedContent struct {
	ID            string
	OwnerID       string
	Url           string
	Title         string
	Content       string
	ContentLength int64
	Links         string
	CreatedAt     int64
	UpdatedAt     int64
}

const upsertScrapedContent = `
insert into scraped_content (
    id, owner_id, url, title, content, content_length, links, created_at, updated_at
) values (?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (owner_id, url) do update set
    title = excluded.title,
    content = excluded.content,
    content_length = excluded.content_length,
    links = excluded.links,
    updated_at = excluded.updated_at
`

type UpsertScrapedContentParams struct {
	ID            string
	OwnerID       string
	Url           string
	Title         string
	Content       string
	ContentLength int64
	Links         string
	Now           int64
}

func (q *Queries) UpsertScrapedContent(ctx context.Context, arg UpsertScrapedContentParams) error {
	_, err := q.db.ExecContext(
		ctx, upsertScrapedContent,
		arg.ID,
		arg.OwnerID,
		arg.Url,
		arg.Title,
		arg.Content,
		arg.ContentLength,
		arg.Links,
		arg.Now,
		arg.Now,
	)
	return err
}

const listScrapedContent = `
select id, owner_id, url, title, content, content_length, links, created_at, updated_at
from scraped_content
where owner_id = ?
order by created_at, url
`

func (q *Queries) ListScrapedContent(ctx context.Context, ownerID string) ([]ScrapedContent, error) {
	rows, err := q.db.QueryContext(ctx, listScrapedContent, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ScrapedContent
	for rows.Next() {
		var i ScrapedContent
		if err := rows.Scan(
			&i.ID,
			&i.OwnerID,
			&i.Url,
			&i.Title,
			&i.Content,
			&i.ContentLength,
			&i.Links,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
