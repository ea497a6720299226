package profile

// DefaultSettings returns the built-in profile settings.
func DefaultSettings() Settings {
	return Settings{
		NonCodeExtensions: []string{
			".md", ".markdown", ".txt", ".json", ".yml", ".yaml", ".xml", ".toml", ".ini", ".cfg", ".lock",
			".html", ".htm", ".css", ".scss", ".sass", ".less", ".svg", ".png", ".jpg", ".jpeg", ".gif",
			".ico", ".woff", ".woff2", ".ttf", ".eot", ".csv", ".tsv", ".log", ".sql", ".sh", ".bat",
			".ps1", ".dockerfile", ".gitignore", ".gitattributes", ".editorconfig", ".browserslistrc",
		},
		UniversalTestExtensions: []string{".snap", ".spec"},
		TestDirectories:         []string{"test", "tests", "spec"},
		TestTokens:              []string{"test", "spec"},
		Languages: []Profile{
			{
				Name:             "Java",
				GitHubLanguage:   "Java",
				SourceExtensions: []string{".java"},
				DependencyFiles: []string{
					"pom.xml", "build.gradle", "build.gradle.kts", "settings.gradle", "settings.gradle.kts",
					"gradlew", "gradlew.bat", "mvnw", "mvnw.cmd",
				},
				TestSuffixes: []string{"test.java", "tests.java", "it.java"},
			},
			{
				Name:             "JavaScript",
				GitHubLanguage:   "JavaScript",
				SourceExtensions: []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"},
				DependencyFiles: []string{
					"package.json", "yarn.lock", "pnpm-lock.yaml", "package-lock.json",
					"webpack.config.js", "rollup.config.js", "vite.config.js", "babel.config.js",
					".eslintrc.js", ".prettierrc.js",
				},
				TestSuffixes: []string{
					".test.js", ".test.jsx", ".test.ts", ".test.tsx",
					".spec.js", ".spec.jsx", ".spec.ts", ".spec.tsx",
				},
			},
			{
				Name:             "TypeScript",
				GitHubLanguage:   "TypeScript",
				SourceExtensions: []string{".ts", ".tsx"},
				DependencyFiles: []string{
					"package.json", "yarn.lock", "pnpm-lock.yaml", "package-lock.json",
					"tsconfig.json", "tsconfig.build.json", "webpack.config.js", "rollup.config.js",
					"vite.config.ts", "babel.config.js", ".eslintrc.js", ".prettierrc.js",
				},
				TestSuffixes: []string{".test.ts", ".test.tsx", ".spec.ts", ".spec.tsx"},
			},
			{
				Name:             "Python",
				GitHubLanguage:   "Python",
				SourceExtensions: []string{".py"},
				DependencyFiles: []string{
					"requirements.txt", "pyproject.toml", "setup.py", "setup.cfg", "Pipfile",
					"Pipfile.lock", "poetry.lock", "tox.ini", "pytest.ini",
				},
				TestSuffixes: []string{"_test.py"},
				TestPrefixes: []string{"test_"},
			},
			{
				Name:             "Go",
				GitHubLanguage:   "Go",
				SourceExtensions: []string{".go"},
				DependencyFiles:  []string{"go.mod", "go.sum", "go.work", "go.work.sum", "Gopkg.toml", "Gopkg.lock"},
				TestSuffixes:     []string{"_test.go"},
			},
			{
				Name:             "Rust",
				GitHubLanguage:   "Rust",
				SourceExtensions: []string{".rs"},
				DependencyFiles:  []string{"Cargo.toml", "Cargo.lock", "build.rs", "rust-toolchain", "rust-toolchain.toml"},
				TestSuffixes:     []string{"_test.rs", "_tests.rs"},
			},
			{
				Name:             "C++",
				GitHubLanguage:   "C++",
				SourceExtensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx", ".h"},
				DependencyFiles:  []string{"CMakeLists.txt", "Makefile", "conanfile.txt", "conanfile.py", "vcpkg.json", "meson.build", "BUILD", "BUILD.bazel", "WORKSPACE"},
				TestSuffixes:     []string{"_test.cc", "_test.cpp", "_unittest.cc", "_unittest.cpp"},
			},
		},
	}
}
