package chat

import (
	"slices"
	"strings"
)

// Id identifies a chat. The zero value means "no chat".
type Id string

const None = Id("")

func (this Id) IsNone() bool {
	return this == None
}

func (this Id) String() string {
	return string(this)
}

func (this *Id) Set(plain string) error {
	*this = Id(strings.TrimSpace(plain))
	return nil
}

type Ids []Id

func (this Ids) Strings() []string {
	result := make([]string, len(this))
	for i, v := range this {
		result[i] = v.String()
	}
	return result
}

func (this Ids) String() string {
	return strings.Join(this.Strings(), ",")
}

func (this Ids) Contains(id Id) bool {
	return slices.Contains(this, id)
}

// Sorted returns a sorted copy.
func (this Ids) Sorted() Ids {
	result := slices.Clone(this)
	slices.Sort(result)
	return result
}

// IsSetEqualTo reports whether both contain the same ids regardless of order.
func (this Ids) IsSetEqualTo(o Ids) bool {
	if len(this) != len(o) {
		return false
	}
	return slices.Equal(this.Sorted(), o.Sorted())
}
