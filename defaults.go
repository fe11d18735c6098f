package ftl

import (
	"strings"

	"github.com/ftlgo/ftl/value"
)

// builtinTable holds every ?name the engine knows. It is read-only after
// package initialization. It is filled by init because ?eval reaches the
// table again through the evaluator.
var builtinTable map[string]*builtin

func init() {
	builtinTable = defaultBuiltins()
}

const (
	expectString   = "a string"
	expectNumber   = "a number"
	expectDate     = "a date"
	expectSeq      = "a sequence"
	expectIterable = "a sequence or collection"
	expectHash     = "a hash"
	expectNode     = "a node"
)

func eager(accepts shape, expects string, fn func(*invocation, value.Value) (value.Value, error)) *builtin {
	return &builtin{accepts: accepts, expects: expects, eager: fn}
}

func method(accepts shape, expects string, minArgs, maxArgs int, fn func(*invocation, value.Value, []value.Value) (value.Value, error)) *builtin {
	return &builtin{accepts: accepts, expects: expects, call: fn, minArgs: minArgs, maxArgs: maxArgs}
}

// withCall adds a call form to an eager built-in.
func withCall(b *builtin, minArgs, maxArgs int, fn func(*invocation, value.Value, []value.Value) (value.Value, error)) *builtin {
	b.call, b.minArgs, b.maxArgs = fn, minArgs, maxArgs
	return b
}

func existence(fn func(*invocation, value.Value) (value.Value, error)) *builtin {
	return &builtin{accepts: shapeAny, missing: true, eager: fn}
}

func loopVar(fn func(*invocation, *loopState, []value.Value) (value.Value, error)) *builtin {
	return &builtin{loop: fn}
}

func defaultBuiltins() map[string]*builtin {
	str := func(fn func(*invocation, value.Value) (value.Value, error)) *builtin {
		return eager(shapeString, expectString, fn)
	}
	strMethod := func(minArgs, maxArgs int, fn func(*invocation, value.Value, []value.Value) (value.Value, error)) *builtin {
		return method(shapeString, expectString, minArgs, maxArgs, fn)
	}
	num := func(fn func(*invocation, value.Value) (value.Value, error)) *builtin {
		return eager(shapeNumber, expectNumber, fn)
	}
	date := func(fn func(*invocation, value.Value) (value.Value, error)) *builtin {
		return eager(shapeDate, expectDate, fn)
	}
	seqMethod := func(minArgs, maxArgs int, fn func(*invocation, value.Value, []value.Value) (value.Value, error)) *builtin {
		return method(shapeIterable, expectIterable, minArgs, maxArgs, fn)
	}
	node := func(fn func(*invocation, value.Value) (value.Value, error)) *builtin {
		return eager(shapeNode, expectNode, fn)
	}
	test := func(fn func(*invocation, value.Value) (value.Value, error)) *builtin {
		return eager(shapeAny, "a value", fn)
	}

	return map[string]*builtin{
		// Strings
		"upper_case":         str(biUpperCase),
		"lower_case":         str(biLowerCase),
		"capitalize":         str(biCapitalize),
		"cap_first":          str(biCapFirst),
		"uncap_first":        str(biUncapFirst),
		"length":             str(biLength),
		"trim":               str(biTrim),
		"word_list":          str(biWordList),
		"chop_linebreak":     str(biChopLinebreak),
		"blank_to_null":      str(nullBuiltin(func(s string) bool { return strings.TrimSpace(s) == "" })),
		"empty_to_null":      str(nullBuiltin(func(s string) bool { return s == "" })),
		"trim_to_null":       str(biTrimToNull),
		"boolean":            str(biToBoolean),
		"number":             eager(shapeString|shapeNumber, "a string or number", biToNumber),
		"left_pad":           strMethod(1, 2, biLeftPad),
		"right_pad":          strMethod(1, 2, biRightPad),
		"contains":           strMethod(1, 1, biContains),
		"starts_with":        strMethod(1, 1, biStartsWith),
		"ends_with":          strMethod(1, 1, biEndsWith),
		"ensure_starts_with": strMethod(1, 1, biEnsureStartsWith),
		"ensure_ends_with":   strMethod(1, 1, biEnsureEndsWith),
		"remove_beginning":   strMethod(1, 1, biRemoveBeginning),
		"remove_ending":      strMethod(1, 1, biRemoveEnding),
		"index_of":           strMethod(1, 2, biIndexOf),
		"last_index_of":      strMethod(1, 2, biLastIndexOf),
		"truncate":           strMethod(1, 2, truncateBuiltin(true)),
		"truncate_w":         strMethod(1, 2, truncateBuiltin(true)),
		"truncate_c":         strMethod(1, 2, truncateBuiltin(false)),

		// Regular expressions and search flags
		"replace":          strMethod(2, 3, biReplace),
		"split":            strMethod(1, 2, biSplit),
		"keep_after":       strMethod(1, 2, keepBuiltin(true, false)),
		"keep_after_last":  strMethod(1, 2, keepBuiltin(true, true)),
		"keep_before":      strMethod(1, 2, keepBuiltin(false, false)),
		"keep_before_last": strMethod(1, 2, keepBuiltin(false, true)),
		"matches":          strMethod(1, 2, biMatches),
		"groups":           eager(shapeSeq|shapeObject, "the result of ?matches", biGroups),

		// Escaping
		"html":        str(escapeBuiltin("HTML")),
		"xhtml":       str(escapeBuiltin("XHTML")),
		"xml":         str(escapeBuiltin("XML")),
		"rtf":         str(escapeBuiltin("RTF")),
		"js_string":   str(biJSString),
		"j_string":    str(biJString),
		"json_string": str(biJSONString),
		"url":         withCall(str(urlBuiltin(false)), 1, 1, urlCharsetBuiltin(false)),
		"url_path":    withCall(str(urlBuiltin(true)), 1, 1, urlCharsetBuiltin(true)),

		// Output formats
		"no_esc":        str(biNoEsc),
		"esc":           str(biEsc),
		"markup_string": str(biMarkupString),

		// Numbers
		"round":              num(biRound),
		"floor":              num(biFloor),
		"ceiling":            num(biCeiling),
		"int":                num(biInt),
		"abs":                num(biAbs),
		"float":              num(biToFloat),
		"double":             num(biToFloat),
		"is_nan":             num(biIsNaN),
		"is_infinite":        num(biIsInfinite),
		"lower_abc":          num(abcBuiltin(false)),
		"upper_abc":          num(abcBuiltin(true)),
		"number_to_date":     num(numberToDate(value.DateKindDate)),
		"number_to_time":     num(numberToDate(value.DateKindTime)),
		"number_to_datetime": num(numberToDate(value.DateKindDateTime)),
		"long":               eager(shapeNumber|shapeDate, "a number or date", biLong),

		// Formatting
		"string": withCall(eager(shapeString|shapeNumber|shapeBool|shapeDate, "a string, number, boolean or date", biString),
			1, 2, biStringFormat),
		"c": eager(shapeString|shapeNumber|shapeBool, "a string, number or boolean", biC),
		"cn": &builtin{
			accepts: shapeString | shapeNumber | shapeBool, expects: "a string, number or boolean",
			missing: true, eager: biCN,
		},

		// Dates
		"date":                withCall(eager(shapeString|shapeDate, "a string or date", dateBuiltin(value.DateKindDate)), 1, 1, dateParseBuiltin(value.DateKindDate)),
		"time":                withCall(eager(shapeString|shapeDate, "a string or date", dateBuiltin(value.DateKindTime)), 1, 1, dateParseBuiltin(value.DateKindTime)),
		"datetime":            withCall(eager(shapeString|shapeDate, "a string or date", dateBuiltin(value.DateKindDateTime)), 1, 1, dateParseBuiltin(value.DateKindDateTime)),
		"date_if_unknown":     date(dateIfUnknown(value.DateKindDate)),
		"time_if_unknown":     date(dateIfUnknown(value.DateKindTime)),
		"datetime_if_unknown": date(dateIfUnknown(value.DateKindDateTime)),
		"iso_utc":             date(isoBuiltin(true)),
		"iso_local":           date(isoBuiltin(false)),

		// Booleans and conditionals
		"then":   {accepts: shapeBool, expects: "a boolean", lazy: biThen},
		"switch": {accepts: shapeAny, expects: "a value", lazy: biSwitch},

		// Sequences
		"size":              eager(shapeIterable|shapeHash, "a sequence, collection or hash", biSize),
		"first":             eager(shapeIterable, expectIterable, biFirst),
		"last":              eager(shapeSeq, expectSeq, biLast),
		"reverse":           eager(shapeIterable, expectIterable, biReverse),
		"sequence":          eager(shapeIterable, expectIterable, biSequence),
		"sort":              eager(shapeIterable, expectIterable, biSort),
		"sort_by":           seqMethod(1, 1, biSortBy),
		"join":              seqMethod(1, 3, biJoin),
		"seq_contains":      seqMethod(1, 1, biSeqContains),
		"seq_index_of":      seqMethod(1, 2, seqIndexOf(false)),
		"seq_last_index_of": seqMethod(1, 2, seqIndexOf(true)),
		"chunk":             seqMethod(1, 2, biChunk),
		"min":               eager(shapeIterable, expectIterable, extremeBuiltin(-1)),
		"max":               eager(shapeIterable, expectIterable, extremeBuiltin(1)),
		"filter":            seqMethod(1, 1, biFilter),
		"map":               seqMethod(1, 1, biMap),
		"take_while":        seqMethod(1, 1, biTakeWhile),
		"drop_while":        seqMethod(1, 1, biDropWhile),

		// Hashes
		"keys":   eager(shapeHash, expectHash, biKeys),
		"values": eager(shapeHash, expectHash, biValues),

		// Existence
		"has_content": existence(biHasContent),
		"exists":      existence(biExists),
		"if_exists":   existence(biIfExists),
		"default":     {accepts: shapeAny, missing: true, call: biDefault, minArgs: 1, maxArgs: -1},

		// Type tests
		"is_string":            test(kindTest(value.KindString)),
		"is_number":            test(kindTest(value.KindNumber)),
		"is_boolean":           test(kindTest(value.KindBool)),
		"is_date":              test(kindTest(value.KindDate)),
		"is_date_like":         test(kindTest(value.KindDate)),
		"is_date_only":         test(dateKindTest(value.DateKindDate)),
		"is_time":              test(dateKindTest(value.DateKindTime)),
		"is_datetime":          test(dateKindTest(value.DateKindDateTime)),
		"is_unknown_date_like": test(dateKindTest(value.DateKindUnknown)),
		"is_sequence":          test(kindTest(value.KindSeq)),
		"is_indexable":         test(kindTest(value.KindSeq)),
		"is_collection":        test(kindTest(value.KindSeq, value.KindCollection)),
		"is_collection_ex":     test(kindTest(value.KindSeq, value.KindCollection)),
		"is_enumerable":        test(kindTest(value.KindSeq, value.KindCollection)),
		"is_hash":              test(kindTest(value.KindHash)),
		"is_hash_ex":           test(kindTest(value.KindHash)),
		"is_method":            test(kindTest(value.KindCallable)),
		"is_macro":             test(kindTest(value.KindMacro)),
		"is_directive":         test(biIsDirective),
		"is_node":              test(kindTest(value.KindNode)),
		"is_markup_output":     test(biIsMarkupOutput),

		// Nodes
		"node_name":      node(biNodeName),
		"node_type":      node(biNodeType),
		"node_namespace": node(biNodeNamespace),
		"children":       node(biChildren),
		"parent":         node(biParent),
		"root":           node(biRoot),
		"ancestors":      withCall(node(biAncestors), 1, -1, biAncestorsNamed),

		// Dynamic evaluation and templates
		"eval":                   str(biEval),
		"eval_json":              str(biEvalJSON),
		"interpret":              eager(shapeString|shapeSeq, "a string or a sequence of strings", biInterpret),
		"namespace":              eager(shapeMacro, "a macro or function", biNamespace),
		"absolute_template_name": withCall(str(biAbsoluteTemplateName), 1, 1, biAbsoluteTemplateNameFrom),

		// Loop variables
		"index":           loopVar(loopIndex),
		"counter":         loopVar(loopCounter),
		"has_next":        loopVar(loopHasNext),
		"is_first":        loopVar(loopIsFirst),
		"is_last":         loopVar(loopIsLast),
		"is_odd_item":     loopVar(loopIsOdd),
		"is_even_item":    loopVar(loopIsEven),
		"item_parity":     loopVar(loopParity("odd", "even")),
		"item_parity_cap": loopVar(loopParity("Odd", "Even")),
		"item_cycle":      &builtin{loop: loopItemCycle, minArgs: 1, maxArgs: -1},
	}
}
