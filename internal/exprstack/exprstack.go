// Package exprstack implements the interleaved value/operator stack the
// expression driver (C9) threads its evaluation through, and the
// collapse routine that reduces it against C8's operator evaluators.
//
// Grounded on picoc's expression_stack.c: ExpressionStackPushValueNode,
// ExpressionStackPushOperator, and ExpressionStackCollapse's three-way
// switch on prefix/infix/postfix node order, walking the stack one
// operator at a time while FoundPrecedence stays at or above the
// requested precedence.
package exprstack

import (
	"fmt"

	"github.com/kr/pretty"

	"github.com/robinrowe/picoc/internal/opertable"
	"github.com/robinrowe/picoc/internal/token"
	"github.com/robinrowe/picoc/internal/value"
)

// Order tags what kind of operator a node holds; OrderNone marks a value
// node instead of an operator node.
type Order int

const (
	OrderNone Order = iota
	OrderPrefix
	OrderInfix
	OrderPostfix
)

func (o Order) String() string {
	switch o {
	case OrderPrefix:
		return "prefix"
	case OrderInfix:
		return "infix"
	case OrderPostfix:
		return "postfix"
	default:
		return "value"
	}
}

// Node is one entry of the stack: either a value (Order == OrderNone) or
// an operator (Order != OrderNone). Reading left to right, consecutive
// value nodes never appear adjacent; consecutive operator nodes may
// (prefix operators stack up before their operand arrives).
type Node struct {
	Next *Node

	// Value-node fields.
	Value    *value.Value
	IsLValue bool

	// Operator-node fields.
	Order      Order
	Op         token.Kind
	Precedence int
}

// Evaluator is the seam C6 calls into C8 through: three operator
// evaluators keyed by run mode being left to the caller (a skip-mode
// driver may supply a no-op evaluator that always returns a zero value).
type Evaluator interface {
	Prefix(op token.Kind, operand *value.Value) (*value.Value, error)
	Postfix(op token.Kind, operand *value.Value) (*value.Value, error)
	Infix(op token.Kind, left, right *value.Value) (*value.Value, error)
}

// Stack is the expression evaluation stack for one expression parse.
type Stack struct {
	top *Node
}

// Top returns the current top node, or nil if the stack is empty.
func (s *Stack) Top() *Node { return s.top }

// Empty reports whether the stack has no nodes.
func (s *Stack) Empty() bool { return s.top == nil }

// PushValue pushes a value node.
func (s *Stack) PushValue(v *value.Value, isLValue bool) {
	s.top = &Node{Next: s.top, Value: v, IsLValue: isLValue}
}

// PushOperator pushes an operator node. order must not be OrderNone.
func (s *Stack) PushOperator(order Order, op token.Kind, precedence int) error {
	if order == OrderNone {
		return fmt.Errorf("exprstack: PushOperator called with OrderNone")
	}
	s.top = &Node{Next: s.top, Order: order, Op: op, Precedence: precedence}
	return nil
}

// PopValue removes and returns the top node's value. It is an error to
// call this when the top node is an operator.
func (s *Stack) PopValue() (*value.Value, bool, error) {
	if s.top == nil {
		return nil, false, fmt.Errorf("exprstack: pop on empty stack")
	}
	if s.top.Order != OrderNone {
		return nil, false, fmt.Errorf("exprstack: top node is an operator, not a value")
	}
	n := s.top
	s.top = s.top.Next
	return n.Value, n.IsLValue, nil
}

// Collapse reduces the stack against eval until either the stack is
// exhausted or the next operator's precedence falls below precedence.
// ignorePrecedence implements short-circuit evaluation for && / ||: a
// subexpression whose result is already known may be pushed "ignored"
// (conventionally fed a live evaluator that returns dummy zero values),
// and once collapse pops back above *ignorePrecedence it resets to
// opertable.DeepPrecedence, turning live evaluation back on. Grounded on
// ExpressionStackCollapse's FoundPrecedence/IgnorePrecedence loop.
func (s *Stack) Collapse(precedence int, ignorePrecedence *int, eval Evaluator) error {
	foundPrecedence := precedence

	for s.top != nil && s.top.Next != nil && foundPrecedence >= precedence {
		var operatorNode *Node
		if s.top.Order == OrderNone {
			operatorNode = s.top.Next
		} else {
			operatorNode = s.top
		}
		if operatorNode == nil {
			break
		}
		foundPrecedence = operatorNode.Precedence
		if foundPrecedence < precedence {
			break
		}

		switch operatorNode.Order {
		case OrderPrefix:
			operandNode := s.top
			s.top = operatorNode.Next
			result, err := eval.Prefix(operatorNode.Op, operandNode.Value)
			if err != nil {
				return err
			}
			s.PushValue(result, false)

		case OrderPostfix:
			operandNode := s.top.Next
			if operandNode == nil {
				return fmt.Errorf("exprstack: postfix operator %v has no operand", operatorNode.Op)
			}
			s.top = operandNode.Next
			result, err := eval.Postfix(operatorNode.Op, operandNode.Value)
			if err != nil {
				return err
			}
			s.PushValue(result, false)

		case OrderInfix:
			topValueNode := s.top
			if topValueNode.Order != OrderNone {
				return fmt.Errorf("exprstack: infix operator %v missing right operand", operatorNode.Op)
			}
			bottomNode := operatorNode.Next
			if bottomNode == nil || bottomNode.Order != OrderNone {
				foundPrecedence = -1
				break
			}
			s.top = bottomNode.Next
			result, err := eval.Infix(operatorNode.Op, bottomNode.Value, topValueNode.Value)
			if err != nil {
				return err
			}
			s.PushValue(result, false)

		default:
			return fmt.Errorf("exprstack: logic error, operator node with OrderNone")
		}

		if foundPrecedence <= *ignorePrecedence {
			*ignorePrecedence = opertable.DeepPrecedence
		}
	}
	return nil
}

// Debug renders the stack, top to bottom, using the same node-chain
// pretty-printer spec.md's C6 calls for, in place of picoc's
// #ifdef DEBUG_EXPRESSIONS-gated ExpressionStackShow.
func (s *Stack) Debug() string {
	var nodes []string
	for n := s.top; n != nil; n = n.Next {
		if n.Order == OrderNone {
			nodes = append(nodes, fmt.Sprintf("value=%s", pretty.Sprint(n.Value)))
		} else {
			nodes = append(nodes, fmt.Sprintf("op=%v %s prec=%d", n.Op, n.Order, n.Precedence))
		}
	}
	return fmt.Sprintf("%v", nodes)
}
