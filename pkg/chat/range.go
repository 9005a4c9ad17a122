package chat

import "fmt"

// IdRange is a range of entry ids. Start is inclusive, End exclusive.
type IdRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (this IdRange) IsEmpty() bool {
	return this.End <= this.Start
}

func (this IdRange) Size() int64 {
	if this.IsEmpty() {
		return 0
	}
	return this.End - this.Start
}

func (this IdRange) Contains(id int64) bool {
	return id >= this.Start && id < this.End
}

func (this IdRange) WithStart(start int64) IdRange {
	return IdRange{start, this.End}
}

func (this IdRange) String() string {
	return fmt.Sprintf("[%d,%d)", this.Start, this.End)
}

// TileSize is the amount of ids each tile of entries spans.
const TileSize = int64(32)

// TileOf returns the aligned tile containing the given id.
func TileOf(id int64) IdRange {
	start := id - id%TileSize
	if id < 0 && id%TileSize != 0 {
		start -= TileSize
	}
	return IdRange{start, start + TileSize}
}
