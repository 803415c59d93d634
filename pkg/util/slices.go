package util

// InPlaceFilter keeps only the elements matching the predicate, reusing the
// backing array.
func InPlaceFilter[T any](s *[]T, keep func(T) bool) {
	kept := 0
	for _, element := range *s {
		if keep(element) {
			(*s)[kept] = element
			kept++
		}
	}
	*s = (*s)[:kept]
}
