package conf

import (
	"flag"
	"fmt"

	"github.com/dustin/go-humanize"
)

//Capacity is a count/size in bytes, its primary purpose is to allow the flags
// package to parse human IEC values like "32 KiB" or "2 TB"
type Capacity uint64

//String returns capacity in human readable IEC units, see: flag.Value interface
func (c *Capacity) String() string {
	if c == nil {
		return humanize.IBytes(0)
	}
	return humanize.IBytes(uint64(*c))
}

//Set is used by the flag package, see: flag.Value interface
func (c *Capacity) Set(str string) error {
	val, err := humanize.ParseBytes(str)
	if err != nil {
		return fmt.Errorf("Parsing %q failed: %w", str, err)
	}

	*c = Capacity(val)
	return nil
}

//Get is used by the flag package, see: flag.Getter interface
func (c *Capacity) Get() interface{} { return *c }

//Bytes is the capacity as a plain count
func (c Capacity) Bytes() uint64 { return uint64(c) }

//Analog to methods like flag.DurationVar for use in parsing capacity command-line args
func flagCapacityVar(fs *flag.FlagSet, p *Capacity, name string, value Capacity, usage string) {
	*p = value
	fs.Var(p, name, usage)
}
