package token

// keywords maps lowercase keyword strings to their token kind.
var keywords map[string]Kind

func init() {
	keywords = map[string]Kind{
		"select":   SELECT,
		"from":     FROM,
		"where":    WHERE,
		"and":      AND,
		"or":       OR,
		"not":      NOT,
		"in":       IN,
		"like":     LIKE,
		"ilike":    ILIKE,
		"between":  BETWEEN,
		"is":       IS,
		"null":     NULL,
		"true":     TRUE,
		"false":    FALSE,
		"unknown":  UNKNOWN,
		"as":       AS,
		"all":      ALL,
		"distinct": DISTINCT,
		"any":      ANY,
		"some":     SOME,

		"join":    JOIN,
		"inner":   INNER,
		"left":    LEFT,
		"right":   RIGHT,
		"full":    FULL,
		"outer":   OUTER,
		"cross":   CROSS,
		"natural": NATURAL,
		"on":      ON,
		"using":   USING,
		"lateral": LATERAL,

		"order":  ORDER,
		"by":     BY,
		"asc":    ASC,
		"desc":   DESC,
		"nulls":  NULLS,
		"first":  FIRST,
		"last":   LAST,
		"group":  GROUP,
		"having": HAVING,

		"limit":  LIMIT,
		"offset": OFFSET,
		"fetch":  FETCH,
		"next":   NEXT,
		"row":    ROW,
		"rows":   ROWS,
		"only":   ONLY,
		"with":   WITH,
		"ties":   TIES,

		"union":     UNION,
		"intersect": INTERSECT,
		"except":    EXCEPT,

		"values":  VALUES,
		"default": DEFAULT,

		"delete": DELETE,

		"merge":   MERGE,
		"into":    INTO,
		"matched": MATCHED,
		"source":  SOURCE,
		"target":  TARGET,
		"do":      DO,
		"nothing": NOTHING,

		"update": UPDATE,
		"set":    SET,

		"case":      CASE,
		"when":      WHEN,
		"then":      THEN,
		"else":      ELSE,
		"end":       END,
		"cast":      CAST,
		"collate":   COLLATE,
		"over":      OVER,
		"partition": PARTITION,
		"window":    WINDOW,
		"filter":    FILTER,
		"current":   CURRENT,
		"unbounded": UNBOUNDED,
		"preceding": PRECEDING,
		"following": FOLLOWING,
		"range":     RANGE,
		"groups":    GROUPS,

		"count":    COUNT,
		"coalesce": COALESCE,

		"recursive": RECURSIVE,
		"exists":    EXISTS,

		"normalized":        NORMALIZED,
		"nfc":               NFC,
		"nfd":               NFD,
		"nfkc":              NFKC,
		"nfkd":              NFKD,
		"current_date":      CURRENT_DATE,
		"current_time":      CURRENT_TIME,
		"current_timestamp": CURRENT_TIMESTAMP,
		"localtime":         LOCALTIME,
		"localtimestamp":    LOCALTIMESTAMP,
	}
}

// LookupIdent returns the token kind for an identifier: the keyword kind
// if it matches a reserved word, otherwise IDENT.
func LookupIdent(ident string) Kind {
	if isLowercase(ident) {
		if tok, ok := keywords[ident]; ok {
			return tok
		}
		return IDENT
	}

	if len(ident) <= 32 {
		var buf [32]byte
		for i := 0; i < len(ident); i++ {
			c := ident[i]
			if c >= 'A' && c <= 'Z' {
				buf[i] = c + 32
			} else {
				buf[i] = c
			}
		}
		lower := string(buf[:len(ident)])
		if tok, ok := keywords[lower]; ok {
			return tok
		}
		return IDENT
	}

	return IDENT
}

func isLowercase(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			return false
		}
	}
	return true
}

// IsKeyword returns true if the identifier is a SQL keyword recognized here.
func IsKeyword(ident string) bool {
	return LookupIdent(ident) != IDENT
}
