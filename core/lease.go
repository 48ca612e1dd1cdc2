package core

// Owner tracks which handle currently holds a peripheral. Every state
// transition consumes the caller's Lease and hands out a fresh one, so a
// copy of an old handle can never start a second operation.
type Owner struct {
	name   string
	gen    uint32
	issued bool
}

// NewOwner creates the ownership record for a peripheral. name appears in
// misuse panics.
func NewOwner(name string) *Owner {
	return &Owner{name: name}
}

// Name returns the peripheral name.
func (o *Owner) Name() string {
	return o.name
}

// Lease issues the first lease. Peripherals are created once at init, so a
// second call is a programming error.
func (o *Owner) Lease() Lease {
	if o.issued {
		panic(o.name + ": lease already issued")
	}
	o.issued = true
	o.gen = 1
	return Lease{owner: o, gen: o.gen}
}

// Lease is a single-use token proving ownership of a peripheral in one
// state. The zero Lease is never valid.
type Lease struct {
	owner *Owner
	gen   uint32
}

// Valid reports whether the lease is the current one for its peripheral.
func (l Lease) Valid() bool {
	return l.owner != nil && l.gen == l.owner.gen
}

// Check panics unless the lease is current.
func (l Lease) Check() {
	if l.owner == nil {
		panic("core: use of zero peripheral handle")
	}
	if l.gen != l.owner.gen {
		panic(l.owner.name + ": handle used after ownership moved on")
	}
}

// Transfer consumes l and returns the lease for the next state.
func (l Lease) Transfer() Lease {
	l.Check()
	l.owner.gen++
	return Lease{owner: l.owner, gen: l.owner.gen}
}

// Owner returns the ownership record the lease belongs to.
func (l Lease) Owner() *Owner {
	return l.owner
}
