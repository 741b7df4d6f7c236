package aggregator

type precedenceSorter struct {
	sources []*registered
}

// less orders by declared Order, then by registration sequence: earlier registration wins a tie
func (ps precedenceSorter) less() func(i, j int) bool {
	return func(i, j int) bool {
		left := ps.sources[i]
		right := ps.sources[j]

		if left.Order != right.Order {
			return left.Order < right.Order
		}
		return left.seq < right.seq
	}
}
