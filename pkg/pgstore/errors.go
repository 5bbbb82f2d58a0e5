package pgstore

import "errors"

var (
	ErrNilPool           = errors.New("nil connection pool")
	ErrEmptyExpression   = errors.New("empty predicate expression")
	ErrNilDefinition     = errors.New("nil state definition")
	ErrEmptyDimension    = errors.New("empty dimension")
	ErrNoPredicateStates = errors.New("predicate needs at least one state")
	ErrEmptyOwnerType    = errors.New("empty owner type")
	ErrEmptyOwnerIDExpr  = errors.New("empty owner id expression")
)
