package checksum

import "testing"

func TestSumKnownValue(t *testing.T) {
	// sha256("") is a fixed constant.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != want {
		t.Errorf("Sum(nil) = %s, want %s", got, want)
	}
}

func TestJSONStable(t *testing.T) {
	type seg struct {
		Label string  `json:"label"`
		Start float64 `json:"start"`
	}
	a, err := JSON(seg{Label: "x", Start: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := JSON(seg{Label: "x", Start: 1})
	c, _ := JSON(seg{Label: "y", Start: 1})
	if a != b {
		t.Error("equal values should hash equally")
	}
	if a == c {
		t.Error("different values should hash differently")
	}
	if _, err := JSON(make(chan int)); err == nil {
		t.Error("unencodable value should fail")
	}
}
