package paging

const (
	DefaultPage = 0
	DefaultSize = 10
	MaxSize     = 100
)

// Request is a zero-based page request. Normalize before use; handlers build
// it straight from query parameters.
type Request struct {
	Page int
	Size int
}

func NewRequest(page, size int) Request {
	r := Request{Page: page, Size: size}
	return r.Normalize()
}

func (r Request) Normalize() Request {
	if r.Page < 0 {
		r.Page = DefaultPage
	}
	if r.Size <= 0 {
		r.Size = DefaultSize
	}
	if r.Size > MaxSize {
		r.Size = MaxSize
	}
	return r
}

func (r Request) Offset() int {
	return r.Page * r.Size
}

func (r Request) Limit() int {
	return r.Size
}

// Page carries the paging metadata returned alongside every paged listing.
type Page struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func NewPage(req Request, totalElements int64) Page {
	req = req.Normalize()
	totalPages := int(totalElements) / req.Size
	if int(totalElements)%req.Size != 0 {
		totalPages++
	}
	return Page{
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: totalElements,
		TotalPages:    totalPages,
	}
}
