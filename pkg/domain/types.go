package domain

// Article is the single persistent entity of the CMS. CreatedAt is a date
// string supplied by the caller at creation time and is the listing sort key;
// it is never modified by updates.
type Article struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Content     string   `json:"content"`
	ReadTime    string   `json:"readTime"`
	CreatedAt   string   `json:"createdAt"`
}

// ListFilter narrows a listing. The zero value matches everything.
type ListFilter struct {
	// Query is a case-insensitive substring match over title, description
	// and content.
	Query string
	// Tag requires exact membership in the article's tag list.
	Tag string
}

// PageCursor points at an adjacent page of a listing.
type PageCursor struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// ArticlePage is the paginated listing envelope. Next is present iff more
// rows exist past this window, Previous iff the window starts past row zero.
type ArticlePage struct {
	Next     *PageCursor `json:"next,omitempty"`
	Previous *PageCursor `json:"previous,omitempty"`
	Results  []Article   `json:"results"`
}
