package labor

// PatchOperation is a single partial-update instruction. Supported ops are
// "replace" on /name and /telefonnummer and "add"/"remove" on /laborTests.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// ApplyPatch applies the operations to a copy of the laboratory and returns
// it. Operations are partitioned and applied in a fixed order: all replace,
// then all add, then all remove. Unknown ops, unknown paths and values that
// do not decode to a test type are silently ignored, so an add and a remove
// of the same test type in one document net to a removal.
func ApplyPatch(l Labor, operations []PatchOperation) Labor {
	out := l.Clone()

	for _, op := range operations {
		if op.Op != "replace" {
			continue
		}
		switch op.Path {
		case "/name":
			out.Name = op.Value
		case "/telefonnummer":
			out.Telefonnummer = op.Value
		}
	}

	for _, op := range operations {
		if op.Op != "add" || op.Path != "/laborTests" {
			continue
		}
		typ, ok := BuildTestTyp(op.Value)
		if !ok || out.HasTest(typ) {
			continue
		}
		out.LaborTests = append(out.LaborTests, typ)
	}

	for _, op := range operations {
		if op.Op != "remove" || op.Path != "/laborTests" {
			continue
		}
		typ, ok := BuildTestTyp(op.Value)
		if !ok {
			continue
		}
		kept := out.LaborTests[:0]
		for _, t := range out.LaborTests {
			if t != typ {
				kept = append(kept, t)
			}
		}
		out.LaborTests = kept
	}

	return out
}
