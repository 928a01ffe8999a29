package domain

// Page is the result of one listing-API call: the candidate reference URLs it
// carried and the pagination token for the next call. An empty After means the
// listing is exhausted.
type Page struct {
	After      string
	References []string
}
