// Package places implements the place algebra: the prefix relation,
// sibling expansion, Expand (split a place around a deeper one) and
// Collapse (fold complete sibling groups back into their parent).
//
// All operations consult an oracle.Oracle for the shape of each prefix and
// never hard-code arities. Precondition failures are programming errors
// and panic with *ContractViolation; oracle failures, including
// oracle.ErrUnsupported, are returned as errors. Guard converts the former
// into the latter at package boundaries.
//
// Normalizer wraps the algebra for the dataflow analysis:
//
//	n := places.NewNormalizer(oracle.New(body))
//	set := places.NewSet(x)
//	err := n.Refine(set, xfg)     // {x.k, x.f.h, x.f.g}
//	err = n.Generalize(set, xfg)  // {x}
package places
