package spawncap

import "strings"

// TargetDescriptor identifies a host method spawncap wants to intercept: the owning type
// plus the method signature. Its [TargetDescriptor.Key] is the set key used everywhere a
// target must be unique (probe cache, registration set).
type TargetDescriptor struct {
	Owner  string
	Method string
	Params []string
}

// Target is a convenience constructor for TargetDescriptor.
func Target(owner, method string, params ...string) TargetDescriptor {
	return TargetDescriptor{Owner: owner, Method: method, Params: params}
}

// Key returns "Owner.Method(Param1,Param2)".
func (t TargetDescriptor) Key() string {
	var sb strings.Builder
	sb.WriteString(t.Owner)
	sb.WriteByte('.')
	sb.WriteString(t.Method)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(t.Params, ","))
	sb.WriteByte(')')
	return sb.String()
}

func (t TargetDescriptor) String() string {
	return t.Key()
}
