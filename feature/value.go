package feature

// Kind discriminates the closed set of value types a feature can carry.
type Kind string

const (
	KindBool   Kind = "BOOLEAN"
	KindString Kind = "STRING"
	KindInt    Kind = "INT"
	KindDouble Kind = "DOUBLE"
	KindEnum   Kind = "ENUM"
	KindRecord Kind = "DATA_CLASS"
)

// Value is the closed union of values a feature can resolve to. The only
// implementations are Bool, String, Int, Double, Enum, and Record; type
// switches over Value may treat that set as exhaustive.
type Value interface {
	Kind() Kind

	// Equal reports semantic equality. Values of different kinds are never
	// equal.
	Equal(other Value) bool

	sealed()
}

// Bool is a boolean feature value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) sealed()    {}

func (v Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && v == o
}

// String is a string feature value.
type String string

func (String) Kind() Kind { return KindString }
func (String) sealed()    {}

func (v String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && v == o
}

// Int is an integer feature value.
type Int int64

func (Int) Kind() Kind { return KindInt }
func (Int) sealed()    {}

func (v Int) Equal(other Value) bool {
	o, ok := other.(Int)
	return ok && v == o
}

// Double is a floating-point feature value.
type Double float64

func (Double) Kind() Kind { return KindDouble }
func (Double) sealed()    {}

func (v Double) Equal(other Value) bool {
	o, ok := other.(Double)
	return ok && v == o
}

// Enum is a named enumeration member. EnumType is informational metadata
// carried through the wire format; it is never used to resolve types and
// does not participate in equality.
type Enum struct {
	Name     string
	EnumType string
}

func (Enum) Kind() Kind { return KindEnum }
func (Enum) sealed()    {}

func (v Enum) Equal(other Value) bool {
	o, ok := other.(Enum)
	return ok && v.Name == o.Name
}

// Record is a named bag of primitive fields. TypeName is informational
// metadata only. Field values are restricted to Bool, String, Int, and
// Double; nesting is not supported.
type Record struct {
	TypeName string
	fields   map[string]Value
}

// NewRecord builds a Record, copying fields so the result is immutable.
func NewRecord(typeName string, fields map[string]Value) Record {
	copied := make(map[string]Value, len(fields))
	for name, value := range fields {
		copied[name] = value
	}
	return Record{TypeName: typeName, fields: copied}
}

func (Record) Kind() Kind { return KindRecord }
func (Record) sealed()    {}

// Field returns the named field value.
func (v Record) Field(name string) (Value, bool) {
	value, ok := v.fields[name]
	return value, ok
}

// Fields returns a copy of the field map.
func (v Record) Fields() map[string]Value {
	copied := make(map[string]Value, len(v.fields))
	for name, value := range v.fields {
		copied[name] = value
	}
	return copied
}

func (v Record) Equal(other Value) bool {
	o, ok := other.(Record)
	if !ok || len(v.fields) != len(o.fields) {
		return false
	}
	for name, value := range v.fields {
		otherValue, present := o.fields[name]
		if !present || !value.Equal(otherValue) {
			return false
		}
	}
	return true
}
