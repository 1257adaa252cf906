package utils

type Pagination struct {
	Total int64 `json:"total"`
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Pages int64 `json:"pages"`
}

// Paginated is the envelope returned by every list endpoint.
type Paginated[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Paginate wraps one page of results. Data is never nil so it encodes as [],
// and never longer than p.Limit.
func Paginate[T any](data []T, total int64, p Page) Paginated[T] {
	if data == nil {
		data = []T{}
	}
	if p.Limit > 0 && int64(len(data)) > p.Limit {
		data = data[:p.Limit]
	}
	var pages int64
	if total > 0 && p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Paginated[T]{
		Data: data,
		Pagination: Pagination{
			Total: total,
			Page:  p.Page,
			Limit: p.Limit,
			Pages: pages,
		},
	}
}
