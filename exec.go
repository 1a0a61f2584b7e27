package ellex

import "strconv"

// execBlock executes statements in order, returning the last statement's
// value. Each statement costs one instruction. A monitor failure aborts the
// execution immediately; output already produced stays produced.
func (r *Runtime) execBlock(stmts []CachedStatement) (Value, error) {
	var last Value = Nil{}
	for _, s := range stmts {
		if err := r.monitor.CheckContinue(); err != nil {
			return nil, err
		}
		v, err := r.execStatement(s)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

func (r *Runtime) execStatement(s CachedStatement) (Value, error) {
	switch s := s.(type) {
	case *CachedTellConst:
		r.print(s.Value.String())
		return s.Value, nil
	case *CachedTell:
		return r.execTell(s)
	case *CachedAsk:
		return r.execAsk(s)
	case *CachedAssign:
		r.env[s.Var] = s.Value
		return s.Value, nil
	case *CachedRepeat:
		return r.execRepeat(s)
	case *CachedWhen:
		return r.execWhen(s)
	case *CachedCall:
		return r.execCall(s)
	case *CachedAccess:
		v, ok := r.env[s.Cache.Name]
		if !ok {
			return nil, logicErrorf("undefined variable %q", s.Cache.Name)
		}
		s.Cache.Lookup(v)
		return cloneValue(v), nil
	case *CachedConstAccess:
		return s.Value, nil
	}
	return nil, logicErrorf("unknown statement")
}

func (r *Runtime) execTell(s *CachedTell) (Value, error) {
	// Record each referenced variable in its cache before formatting.
	// Interpolation tolerates unbound names, so absence is not an error.
	for _, c := range s.Caches {
		if v, ok := r.env[c.Name]; ok {
			c.Lookup(v)
		}
	}
	out := Interpolate(s.Value.String(), r.lookupVar)
	r.print(out)
	return String(out), nil
}

func (r *Runtime) execAsk(s *CachedAsk) (Value, error) {
	if r.input == nil {
		return nil, logicErrorf("ask %q: no input source", s.Var)
	}
	line, err := r.input(s.Var)
	if err != nil {
		return nil, logicErrorf("ask %q: %v", s.Var, err)
	}
	v := parseAnswer(line)
	if s.Hint != nil && TypeOf(v) != *s.Hint {
		return nil, logicErrorf("ask %q: expected a %v, got %q", s.Var, *s.Hint, line)
	}
	r.env[s.Var] = v
	return v, nil
}

// parseAnswer interprets input as a number when it looks like one and as a
// string otherwise.
func parseAnswer(line string) Value {
	if f, err := strconv.ParseFloat(line, 64); err == nil {
		return Number(f)
	}
	return String(line)
}

func (r *Runtime) execRepeat(s *CachedRepeat) (Value, error) {
	if err := r.monitor.CheckLoopStart(s.Count); err != nil {
		return nil, err
	}
	var last Value = Nil{}
	for i := 0; i < s.Count; i++ {
		if err := r.monitor.CheckLoopIteration(i); err != nil {
			return nil, err
		}
		s.Iter.HitCount++
		// The loop counter is visible to the body as "count", 1-based.
		r.env["count"] = Number(i + 1)
		v, err := r.execBlock(s.Body)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

func (r *Runtime) execWhen(s *CachedWhen) (Value, error) {
	v, ok := r.env[s.Cond.Cache.Name]
	if !ok {
		return nil, logicErrorf("undefined variable %q", s.Cond.Cache.Name)
	}
	// The cache pre-validates the variable's type; the comparison itself
	// always runs. A type hit is never taken as an equality answer.
	s.Cond.Cache.Lookup(v)
	if Equal(v, s.Is.Value) {
		return r.execBlock(s.Then)
	}
	return r.execBlock(s.Otherwise)
}

func (r *Runtime) execCall(s *CachedCall) (Value, error) {
	fn, hit := s.Cache.Lookup(s.Args)
	if !hit {
		var ok bool
		fn, ok = r.functions[s.Cache.Name]
		if !ok {
			return r.execCommand(s.Cache.Name, s.Args)
		}
		s.Cache.Store(fn, s.Args)
	}
	s.Body = r.compiledBody(fn)
	if err := r.monitor.EnterRecursion(); err != nil {
		return nil, err
	}
	defer r.monitor.ExitRecursion()
	// Parameters shadow the flat environment for the duration of the call.
	saved := make([]Value, len(fn.Params))
	bound := make([]bool, len(fn.Params))
	for i, p := range fn.Params {
		saved[i], bound[i] = r.env[p]
		if i < len(s.Args) {
			r.env[p] = s.Args[i]
		} else {
			r.env[p] = Nil{}
		}
	}
	defer func() {
		for i, p := range fn.Params {
			if bound[i] {
				r.env[p] = saved[i]
			} else {
				delete(r.env, p)
			}
		}
	}()
	return r.execBlock(s.Body)
}

// execCommand handles calls that name no user function: the built-in turtle
// commands, when turtle graphics are enabled.
func (r *Runtime) execCommand(name string, args []Value) (Value, error) {
	if !r.config.EnableTurtle {
		return nil, logicErrorf("unknown function %q", name)
	}
	num := func(i int) (float64, error) {
		if i >= len(args) {
			return 0, logicErrorf("%s: missing argument %d", name, i+1)
		}
		n, ok := args[i].(Number)
		if !ok {
			return 0, logicErrorf("%s: argument %d must be a number", name, i+1)
		}
		return float64(n), nil
	}
	switch name {
	case "forward":
		d, err := num(0)
		if err != nil {
			return nil, err
		}
		r.turtle.Forward(d)
	case "backward":
		d, err := num(0)
		if err != nil {
			return nil, err
		}
		r.turtle.Forward(-d)
	case "turn_left":
		d, err := num(0)
		if err != nil {
			return nil, err
		}
		r.turtle.TurnLeft(d)
	case "turn_right":
		d, err := num(0)
		if err != nil {
			return nil, err
		}
		r.turtle.TurnRight(d)
	case "pen_up":
		r.turtle.Up()
	case "pen_down":
		r.turtle.Down()
	case "color":
		if len(args) == 0 {
			return nil, logicErrorf("color: missing argument")
		}
		r.turtle.SetColor(args[0].String())
	case "goto":
		x, err := num(0)
		if err != nil {
			return nil, err
		}
		y, err := num(1)
		if err != nil {
			return nil, err
		}
		r.turtle.Goto(x, y)
	case "home":
		r.turtle.Home()
	case "clear":
		r.turtle.ClearDrawing()
	default:
		return nil, logicErrorf("unknown function %q", name)
	}
	return Nil{}, nil
}
