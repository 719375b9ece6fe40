// Package headers embeds the system header set the preprocessor serves
// for `#include <name.h>` directives, standing in for the teacher's
// missing embed dependency with this module's own intrinsic
// declarations instead of a borrowed C standard library.
package headers

import "embed"

//go:embed *.h
var Files embed.FS
