package passes

import "github.com/you-not-fish/kale/internal/ssa"

// Deadcode removes blocks unreachable from the entry and pure values
// whose results are never used. Arguments stay in place so that the
// values of a function line up with its parameters.
func Deadcode(f *ssa.Func) {
	if f.IsDecl() {
		return
	}

	reachable := ssa.Reachable(f)
	var dead []*ssa.Block
	for _, b := range f.Blocks {
		if !reachable[b] {
			dead = append(dead, b)
		}
	}
	for _, b := range dead {
		f.RemoveBlock(b)
	}

	for changed := true; changed; {
		changed = false
		for _, b := range f.Blocks {
			live := b.Values[:0]
			for _, v := range b.Values {
				if v.Uses == 0 && v.IsPure() && v.Op != ssa.OpArg {
					for _, arg := range v.Args {
						if arg != nil {
							arg.Uses--
						}
					}
					changed = true
					continue
				}
				live = append(live, v)
			}
			for i := len(live); i < len(b.Values); i++ {
				b.Values[i] = nil
			}
			b.Values = live
		}
	}
}
