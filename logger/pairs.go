package logger

// eachPair calls fn for every key-value pair in args. Non-string keys and a
// trailing key without a value are skipped, so both adapters attach the same
// fields for the same call.
func eachPair(args []any, fn func(key string, value any)) {
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			fn(key, args[i+1])
		}
	}
}
