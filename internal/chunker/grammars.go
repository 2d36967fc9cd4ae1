package chunker

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// syntaxGrammar is the chunker's per-language capability: which tree-sitter
// language to parse with (nil means "no grammar in this build, route to
// fallback"), which node kinds are chunk boundaries, and which node kind
// marks an import statement for the consecutive-import grouping pass.
type syntaxGrammar struct {
	language      *sitter.Language
	splittable    map[string]bool
	importKind    string
	goSpecialCase bool
}

func kindSet(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// grammars is the fixed table of supported SyntaxGrammar variants, keyed by
// the language tag used throughout the indexer. Languages absent from this
// table, or present with a nil language and goSpecialCase false, route to
// the character-based fallback.
var grammars = map[string]*syntaxGrammar{
	"javascript": {
		language: sitter.NewLanguage(typescript.LanguageTypescript()),
		splittable: kindSet(
			"import_statement",
			"function_declaration",
			"class_declaration",
			"method_definition",
			"arrow_function",
			"export_statement",
			"variable_declaration",
			"lexical_declaration",
		),
		importKind: "import_statement",
	},
	"typescript": {
		language: sitter.NewLanguage(typescript.LanguageTypescript()),
		splittable: kindSet(
			"import_statement",
			"function_declaration",
			"class_declaration",
			"method_definition",
			"arrow_function",
			"export_statement",
			"variable_declaration",
			"lexical_declaration",
			"interface_declaration",
			"type_alias_declaration",
		),
		importKind: "import_statement",
	},
	"tsx": {
		language: sitter.NewLanguage(typescript.LanguageTSX()),
		splittable: kindSet(
			"import_statement",
			"function_declaration",
			"class_declaration",
			"method_definition",
			"arrow_function",
			"export_statement",
			"variable_declaration",
			"lexical_declaration",
			"interface_declaration",
			"type_alias_declaration",
		),
		importKind: "import_statement",
	},
	"python": {
		language: sitter.NewLanguage(python.Language()),
		splittable: kindSet(
			"function_definition",
			"class_definition",
			"decorated_definition",
			"import_statement",
			"import_from_statement",
			"expression_statement", // module-level assignments
		),
		importKind: "import_statement",
	},
	"java": {
		language: sitter.NewLanguage(java.Language()),
		splittable: kindSet(
			"method_declaration",
			"class_declaration",
			"interface_declaration",
			"constructor_declaration",
			"package_declaration",
			"import_declaration",
			"field_declaration",
			"local_variable_declaration",
		),
		importKind: "import_declaration",
	},
	"go": {
		goSpecialCase: true,
	},
	"rust": {
		language: sitter.NewLanguage(rust.Language()),
		splittable: kindSet(
			"function_item",
			"impl_item",
			"struct_item",
			"enum_item",
			"trait_item",
			"mod_item",
			"use_declaration",
			"static_item",
			"const_item",
		),
		importKind: "use_declaration",
	},
	"c": {
		language: sitter.NewLanguage(c.Language()),
		splittable: kindSet(
			"function_definition",
			"class_specifier",
			"namespace_definition",
			"declaration",
		),
		importKind: "preproc_include",
	},
	// C++ has no grammar binding in the corpus; it reuses the C grammar.
	"cpp": {
		language: sitter.NewLanguage(c.Language()),
		splittable: kindSet(
			"function_definition",
			"class_specifier",
			"namespace_definition",
			"declaration",
		),
		importKind: "preproc_include",
	},
	"ruby": {
		language: sitter.NewLanguage(ruby.Language()),
		splittable: kindSet(
			"method",
			"class",
			"module",
			"singleton_method",
		),
		importKind: "call", // require/require_relative parse as call nodes
	},
	"php": {
		language: sitter.NewLanguage(php.LanguagePHP()),
		splittable: kindSet(
			"function_definition",
			"class_declaration",
			"interface_declaration",
			"method_declaration",
			"namespace_use_declaration",
		),
		importKind: "namespace_use_declaration",
	},
	// csharp and scala have a taxonomy but no grammar binding available
	// anywhere in the retrieved corpus; they deterministically fall back
	// to the character splitter, same trigger as "no splittable node".
	"csharp": {
		splittable: kindSet(
			"method_declaration",
			"class_declaration",
			"interface_declaration",
			"struct_declaration",
			"enum_declaration",
		),
	},
	"scala": {
		splittable: kindSet(
			"function_definition",
			"class_definition",
			"object_definition",
			"trait_definition",
		),
	},
}

// lookupGrammar returns the grammar registered for a language tag, or nil
// if the tag is unsupported (route straight to fallback).
func lookupGrammar(language string) *syntaxGrammar {
	g, ok := grammars[language]
	if !ok {
		return nil
	}
	if g.goSpecialCase {
		return g
	}
	if g.language == nil {
		return nil
	}
	return g
}
