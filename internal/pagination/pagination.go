package pagination

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items    []T   `json:"items"`     // элементы на текущей странице
	Page     int   `json:"page"`      // номер страницы (с 1)
	PageSize int   `json:"page_size"` // количество элементов на странице
	HasNext  bool  `json:"has_next"`
	HasPrev  bool  `json:"has_prev"`
	Total    int64 `json:"total"` // общее количество элементов
}

// Request: запрошенная страница. Нули и мусор заменяются дефолтами.
type Request struct {
	Page     int
	PageSize int
}

func (r Request) Normalize() Request {
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	if r.Page <= 0 {
		r.Page = 1
	}
	return r
}

// LimitOffset для запроса в хранилище.
func (r Request) LimitOffset() (limit, offset int) {
	n := r.Normalize()
	return n.PageSize, (n.Page - 1) * n.PageSize
}

// New собирает страницу из уже выбранных элементов и общего количества.
func New[T any](items []T, req Request, total int64) Page[T] {
	n := req.Normalize()
	if items == nil {
		items = []T{}
	}
	end := int64((n.Page-1)*n.PageSize + len(items))

	return Page[T]{
		Items:    items,
		Page:     n.Page,
		PageSize: n.PageSize,
		HasNext:  end < total,
		HasPrev:  n.Page > 1,
		Total:    total,
	}
}

// Map переводит элементы страницы в другое представление.
func Map[T, U any](p Page[T], f func(T) U) Page[U] {
	out := make([]U, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, f(it))
	}
	return Page[U]{
		Items:    out,
		Page:     p.Page,
		PageSize: p.PageSize,
		HasNext:  p.HasNext,
		HasPrev:  p.HasPrev,
		Total:    p.Total,
	}
}
