package bulk

// Split partitions items into consecutive batches of at most size elements.
// Batch k holds items[k*size : min((k+1)*size, len(items))]. A non-positive
// size yields a single batch. The returned batches share items' backing array.
func Split[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}
