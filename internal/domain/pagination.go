package domain

// Pagination selects one page of a user's booking history, pages start at 1.
type Pagination struct {
	Page     int
	PageSize int
}

func (p Pagination) Limit() int {
	return p.PageSize
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Window returns the slice bounds of the page within total records.
func (p Pagination) Window(total int) (start, end int) {
	start = min(max(p.Offset(), 0), total)
	end = min(start+p.Limit(), total)
	return start, end
}

// Metadata describes the page returned alongside a booking listing.
type Metadata struct {
	CurrentPage  int
	FirstPage    int
	LastPage     int
	PageSize     int
	TotalRecords int
}

func NewMetadata(totalRecords int, p Pagination) *Metadata {
	return &Metadata{
		CurrentPage:  p.Page,
		FirstPage:    1,
		LastPage:     (totalRecords + p.PageSize - 1) / p.PageSize,
		PageSize:     p.PageSize,
		TotalRecords: totalRecords,
	}
}
