// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixel

import (
	"strings"

	"github.com/spf13/pflag"
)

// OrderFlag is a pflag.Value that selects an Order by name.
type OrderFlag Order

var _ pflag.Value = (*OrderFlag)(nil)

func (of *OrderFlag) String() string { return Order(*of).String() }

// Set implements pflag.Value.
func (of *OrderFlag) Set(v string) error {
	o, err := ParseOrder(v)
	if err != nil {
		return err
	}
	*of = OrderFlag(o)
	return nil
}

// Type implements pflag.Value.
func (of *OrderFlag) Type() string { return "pixel.Order" }

// Value returns the selected Order.
func (of *OrderFlag) Value() Order { return Order(*of) }

// OrderFlagValues returns a comma-separated list of the valid OrderFlag values.
func OrderFlagValues() string { return strings.Join(orderNames[:], ", ") }
