package testdata

func abs(x int) int {
	y := 0
	if x < 0 {
		y = -x
	} else {
		y = x
	}
	return y
}

func sum(n int) int {
	s := 0
	for i := 0; i < n; i++ {
		s += i
	}
	return s
}

func pick(k int) int {
	r := 0
	switch k {
	case 0:
		r = 10
	case 1:
		r = 11
	default:
		panic("out of range")
	}
	return r
}
