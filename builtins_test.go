package ftl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type renderCase struct {
	name     string
	source   string
	expected string
}

func runRenderCases(t *testing.T, data any, cases []renderCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertRender(t, tc.source, data, tc.expected)
		})
	}
}

func TestStringBuiltins(t *testing.T) {
	runRenderCases(t, nil, []renderCase{
		{"case", `${"Hello"?upper_case} ${"Hello"?lower_case} ${"hello wORLD"?capitalize}`, "HELLO hello Hello WORLD"},
		{"cap first", `${"  abc"?cap_first}|${"ABC"?uncap_first}`, "  Abc|aBC"},
		{"length counts characters", `${"héllo"?length}`, "5"},
		{"trim", `[${"  x \n"?trim}]`, "[x]"},
		{"left pad", `${"abc"?left_pad(5)}|${"abc"?left_pad(5, "xy")}|${"abcdef"?left_pad(3)}`, "  abc|xyabc|abcdef"},
		{"right pad", `${"abc"?right_pad(6, "xy")}|`, "abcyxy|"},
		{"contains", `${"abc"?contains("b")?c} ${"abc"?starts_with("ab")?c} ${"abc"?ends_with("x")?c}`, "true true false"},
		{"ensure", `${"path"?ensure_starts_with("/")} ${"/path"?ensure_starts_with("/")} ${"a"?ensure_ends_with(";")}`, "/path /path a;"},
		{"remove", `${"foobar"?remove_beginning("foo")} ${"foobar"?remove_ending("bar")}`, "bar foo"},
		{"index of", `${"abcb"?index_of("b")} ${"abcb"?last_index_of("b")} ${"abcb"?index_of("b", 2)} ${"abc"?index_of("z")}`, "1 3 3 -1"},
		{"replace", `${"a.b.c"?replace(".", "-")} ${"a.b.c"?replace(".", "-", "f")}`, "a-b-c a-b.c"},
		{"replace regex", `${"a1b22"?replace("[0-9]+", "#", "r")} ${"AbA"?replace("a", "x", "i")}`, "a#b# xbx"},
		{"split", `${"a,b,,c"?split(",")?size} ${"a1b22c"?split("[0-9]+", "r")?join("|")}`, "4 a|b|c"},
		{"keep", `${"k=v=w"?keep_after("=")} ${"k=v=w"?keep_after_last("=")} ${"k=v=w"?keep_before("=")} ${"k=v=w"?keep_before_last("=")}`, "v=w w k k=v"},
		{"keep without match", `[${"abc"?keep_after("=")}] [${"abc"?keep_before("=")}]`, "[] [abc]"},
		{"matches", `${"a1b2"?matches("[a-z][0-9]")?join(",")}<#if "a1"?matches("[a-z][0-9]")> whole</#if>`, "a1,b2 whole"},
		{"groups", `${"a1"?matches("([a-z])([0-9])")?groups[2]}`, "1"},
		{"word list", `${" a  b\tc "?word_list?join("|")}`, "a|b|c"},
		{"truncate", `${"Hello world foo"?truncate(12)} ${"Hello world foo"?truncate_c(12)} ${"short"?truncate(12)}`, "Hello[...] Hello w[...] short"},
		{"truncate terminator", `${"Hello world foo"?truncate(9, "...")}`, "Hello..."},
		{"chop linebreak", `[${"a\n"?chop_linebreak}]`, "[a]"},
		{"to null", `${(" "?blank_to_null)!"null"} ${(""?empty_to_null)!"null"} ${" x "?trim_to_null}`, "null null x"},
		{"number", `${"3.25"?number + 1} ${"1e2"?number}`, "4.25 100"},
		{"boolean", `${"true"?boolean?c} ${"false"?boolean?then("t", "f")}`, "true f"},
	})
	assertRenderErrorKind(t, `${"x"?number}`, nil, ErrBadArguments)
	assertRenderErrorKind(t, `${"abc"?left_pad(5, "")}`, nil, ErrBadArguments)
}

func TestEscapingBuiltins(t *testing.T) {
	runRenderCases(t, nil, []renderCase{
		{"html", `${"<a href='x'>&"?html}`, "&lt;a href=&#39;x&#39;&gt;&amp;"},
		{"xml", `${"'\""?xml}`, "&apos;&quot;"},
		{"rtf", `${"{a\\b}"?rtf}`, `\{a\\b\}`},
		{"js string", `${"<'>"?js_string}`, `\x3C\'\x3E`},
		{"java string", `${"'a\"\n"?j_string}`, `'a\"\n`},
		{"json string", `${'a"b/'?json_string}`, `a\"b/`},
		{"url", `${"a b/c?"?url} ${"a b/c"?url_path}`, "a%20b%2Fc%3F a%20b/c"},
		{"url charset", `${"é"?url} ${"é"?url("ISO-8859-1")}`, "%C3%A9 %E9"},
	})
	assertRenderErrorKind(t, `${"x"?url("no-such-charset")}`, nil, ErrBadArguments)
}

func TestNumberBuiltins(t *testing.T) {
	runRenderCases(t, nil, []renderCase{
		{"rounding", `${2.5?round} ${(-2.5)?round} ${2.7?floor} ${2.1?ceiling} ${(-2.7)?int} ${(-3)?abs}`, "3 -2 2 3 -2 3"},
		{"letters", `${1?lower_abc}${26?lower_abc} ${27?upper_abc}`, "az AA"},
		{"computer format", `${1234567?c} ${0.5?c} ${true?c} ${"a"?c}`, `1234567 0.5 true "a"`},
		{"cn", `${missing?cn} ${1?cn}`, "null 1"},
		{"string format", `${true?string("yes", "no")} ${1234.5?string("0.00")}`, "yes 1234.50"},
		{"float tests", `${1?is_nan?c} ${1?is_infinite?c}`, "false false"},
	})
	assertRenderErrorKind(t, `${0?lower_abc}`, nil, ErrBadArguments)
	assertRenderErrorKind(t, `${"x"?round}`, nil, ErrInvalidType)
}

func TestSequenceBuiltins(t *testing.T) {
	data := map[string]any{
		"users": []map[string]any{
			{"name": "bob", "age": 30, "home": map[string]any{"zip": 2}},
			{"name": "ann", "age": 20, "home": map[string]any{"zip": 1}},
		},
	}
	runRenderCases(t, data, []renderCase{
		{"size", `${[1, 2, 3]?size} ${[]?size} ${(1..4)?size}`, "3 0 4"},
		{"first and last", `${[1, 2, 3]?first} ${[1, 2, 3]?last}`, "1 3"},
		{"reverse", `${[1, 2, 3]?reverse?join(",")}`, "3,2,1"},
		{"sort", `${[3, 1, 2]?sort?join(",")} ${["b", "a"]?sort?join(",")}`, "1,2,3 a,b"},
		{"sort by key", `${users?sort_by("name")?map(u -> u.name)?join(",")}`, "ann,bob"},
		{"sort by path", `${users?sort_by(["home", "zip"])?map(u -> u.name)?join(",")}`, "ann,bob"},
		{"join", `${["a", "b"]?join(", ", "-", ".")} ${[]?join(", ", "empty")}`, "a, b. empty"},
		{"contains", `${[1, "2"]?seq_contains("2")?c} ${[1, "2"]?seq_contains(2)?c}`, "true false"},
		{"index of", `${["a", "b", "a"]?seq_index_of("a")} ${["a", "b", "a"]?seq_last_index_of("a")} ${["a"]?seq_index_of("z")}`, "0 2 -1"},
		{"chunk", `${[1, 2, 3, 4, 5]?chunk(2)?size} ${[1, 2, 3]?chunk(2, 0)?last?join(",")}`, "3 3,0"},
		{"min and max", `${[3, 1, 2]?min} ${[3, 1, 2]?max} ${([]?min)!"none"}`, "1 3 none"},
		{"sequence of range", `${(1..3)?sequence?join(",")}`, "1,2,3"},
	})
	assertRenderErrorKind(t, `${[1, "a"]?sort?join(",")}`, nil, ErrInvalidType)
	assertRenderErrorKind(t, `${[1]?chunk(0)?size}`, nil, ErrBadArguments)
}

func TestHashBuiltins(t *testing.T) {
	assertRender(t, `<#assign h = {"b": 1, "a": 2}>${h?keys?join(",")} ${h?values?join(",")} ${h?size}`, nil, "b,a 1,2 2")
	assertRenderErrorKind(t, `${[1]?keys}`, nil, ErrInvalidType)
}

func TestExistenceBuiltins(t *testing.T) {
	data := map[string]any{"x": "X", "empty": "", "none": nil}
	runRenderCases(t, data, []renderCase{
		{"has content", `${missing?has_content?c} ${empty?has_content?c} ${[]?has_content?c} ${x?has_content?c} ${none?has_content?c}`, "false false false true false"},
		{"exists", `${missing?exists?c} ${x?exists?c} ${none?exists?c}`, "false true false"},
		{"if exists", `[${missing?if_exists}] [${x?if_exists}]`, "[] [X]"},
		{"default", `${missing?default("a")} ${x?default("b")}`, "a X"},
	})
}

func TestTypeTestBuiltins(t *testing.T) {
	assertRender(t,
		`${"s"?is_string?c} ${1?is_number?c} ${[1]?is_sequence?c} ${({})?is_hash?c} ${true?is_boolean?c} ${"s"?is_number?c}`,
		nil, "true true true true true false")
	assertRender(t,
		`<#macro m></#macro><#function f><#return 1></#function>${m?is_macro?c} ${m?is_directive?c} ${f?is_directive?c}`,
		nil, "true true false")
	assertRender(t, `${up?is_method?c}`, map[string]any{"up": func(s string) string { return s }}, "true")
}

func TestThenAndSwitch(t *testing.T) {
	assertRender(t, `${true?then("y", missing)} ${false?then(missing, "n")}`, nil, "y n")
	assertRender(t, `${2?switch(1, "one", 2, "two", "many")} ${5?switch(1, "one", "many")}`, nil, "two many")
	assertRenderErrorKind(t, `${5?switch(1, "one")}`, nil, ErrInvalidOperation)
	assertRenderErrorKind(t, `${true?then("y")}`, nil, ErrBadArguments)
	assertRenderErrorKind(t, `${true?then}`, nil, ErrBadArguments)
	assertRenderErrorKind(t, `${"yes"?then("y", "n")}`, nil, ErrInvalidType)
}

func TestEvalBuiltins(t *testing.T) {
	assertRender(t, `${"1 + 2"?eval} ${"x * 2"?eval}`, map[string]any{"x": 21}, "3 42")
	assertRender(t, `<#assign doc = '{"b": [1, 2], "a": "x"}'?eval_json>${doc?keys?join(",")} ${doc.b?size} ${doc.a}`, nil, "b,a 2 x")
	assertRenderErrorKind(t, `${"1 +"?eval}`, nil, ErrEval)
	assertRenderErrorKind(t, `${"{"?eval_json}`, nil, ErrEval)
}

func TestInterpret(t *testing.T) {
	assertRender(t, `<#assign t = r"Hi ${name}!"?interpret><@t/>`, map[string]any{"name": "Ann"}, "Hi Ann!")
	assertRender(t, `<#assign t = [r"${.template_name}", "snippet.ftl"]?interpret><@t/>`, nil, "snippet.ftl")
	assertRenderErrorKind(t, `<#assign t = "<#if>"?interpret>`, nil, ErrEval)
}

func TestBuiltinErrors(t *testing.T) {
	assertRenderErrorKind(t, `${"x"?no_such_builtin}`, nil, ErrUnknownBuiltin)
	assertRenderErrorKind(t, `${1?upper_case}`, nil, ErrInvalidType)
	assertRenderErrorKind(t, `${"x"?upper_case("y")}`, nil, ErrBadArguments)
	assertRenderErrorKind(t, `${"x"?contains("a", "b")}`, nil, ErrBadArguments)
	err := assertRenderErrorKind(t, `${none?upper_case}`, map[string]any{"none": nil}, ErrInvalidReference)
	assert.Contains(t, err.Message, "none")
}

func TestBoundBuiltin(t *testing.T) {
	assertRender(t, `<#assign f = "abc"?contains>${f("b")?c} ${f("z")?c}`, nil, "true false")
}
