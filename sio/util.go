/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
)

// JS renders its argument as JSON or as '%#v'.
func JS(x interface{}) string {
	if x == nil {
		return "null"
	}
	js, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(js)
}

// ShortLength is the length of JShort output before the "...".
var ShortLength = 70

// JShort renders its argument as JS() but only up to ShortLength
// runes.
func JShort(x interface{}) string {
	js := []rune(JS(x))
	if ShortLength < len(js) {
		return string(js[0:ShortLength]) + "..."
	}
	return string(js)
}

var shell = regexp.MustCompile(`<<(.*?)>>`)

// ShellExpand replaces each '<<CMD>>' in the line with the output of
// 'sh -c CMD'.
func ShellExpand(ctx context.Context, line string) (string, error) {
	literals := shell.Split(line, -1)
	ss := shell.FindAllStringSubmatch(line, -1)
	acc := literals[0]
	for i, s := range ss {
		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, "sh", "-c", s[1])
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("shell error %s on %s", err, s[1])
		}
		acc += out.String() + literals[i+1]
	}
	return acc, nil
}
