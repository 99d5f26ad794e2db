package geardb

import (
	"fmt"
	"reflect"
)

const (
	maxRecordTypes = 64
	maxRecordSize  = 65535
)

// recordType remembers everything the layout code needs about one registered
// type: its identity, byte size and alignment. The slice index in Store.types
// is the type's stable index and its bit position in archetype masks.
type recordType struct {
	typ   reflect.Type
	size  uint16
	align uint16
}

// Register makes T attachable to gears. Registering an already-registered
// type is a no-op. Panics with ErrTypeLimit past the 64th type, with
// ErrTypeTooLarge for types over 65535 bytes and with ErrTypeHasPointers for
// types the garbage collector would need to trace, since block memory is a
// raw arena it cannot see into.
func Register[T any](s *Store) {
	s.registerType(typeOf[T]())
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (s *Store) registerType(t reflect.Type) int {
	if idx := s.typeIndex(t); idx >= 0 {
		return idx
	}
	if len(s.types) >= maxRecordTypes {
		panic(fmt.Errorf("%w: %d types already registered", ErrTypeLimit, len(s.types)))
	}
	if t.Size() > maxRecordSize {
		panic(fmt.Errorf("%w: %s is %d bytes", ErrTypeTooLarge, t, t.Size()))
	}
	if hasPointers(t) {
		panic(fmt.Errorf("%w: %s", ErrTypeHasPointers, t))
	}

	idx := len(s.types)
	s.types = append(s.types, recordType{
		typ:   t,
		size:  uint16(t.Size()),
		align: uint16(t.Align()),
	})
	s.sugar.Debugw("register record type",
		"type", t.String(), "index", idx, "size", t.Size())
	return idx
}

// typeIndex returns t's registration index, or -1. A linear scan over at most
// 64 entries; the registry does no hashing.
func (s *Store) typeIndex(t reflect.Type) int {
	for i := range s.types {
		if s.types[i].typ == t {
			return i
		}
	}
	return -1
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
