package render

import (
	"log"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// Attribute locations shared by the shaders and the VAO layout. A mat4
// attribute takes four consecutive locations, one per column.
const (
	locPosition uint32 = 0
	locModel    uint32 = 1
	locColor    uint32 = 5
)

// ShaderManager handles OpenGL shader program compilation, linking, and uniform
// management.
type ShaderManager struct {
	program   uint32 // program ID
	uViewProj int32  // uniform location for the view-projection matrix
}

// Vertex shader. Places the shared leaf geometry with the per-instance model
// matrix and darkens leaves as they turn away from the viewer.
const vertexShaderSource = `
#version 330 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in mat4 aModel;
layout (location = 5) in vec4 aColor;

uniform mat4 uViewProj;

out vec4 vColor;

void main() {
    vec3 normal = normalize(mat3(aModel) * vec3(0.0, 0.0, 1.0));
    float facing = 0.55 + 0.45 * abs(normal.z);

    gl_Position = uViewProj * aModel * vec4(aPos, 1.0);
    vColor = vec4(aColor.rgb * facing, aColor.a);
}
` + "\x00"

// Fragment shader. Simply applies the vertex-shader forwarded color.
const fragmentShaderSource = `
#version 330 core
in vec4 vColor;
out vec4 FragColor;

void main() {
    FragColor = vColor;
}
` + "\x00"

// NewShaderManager creates and initializes a new shader manager with compiled
// and linked shaders.
func NewShaderManager() *ShaderManager {
	sm := &ShaderManager{}

	vertexShader := sm.compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	defer gl.DeleteShader(vertexShader)

	fragmentShader := sm.compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	defer gl.DeleteShader(fragmentShader)

	sm.program = gl.CreateProgram()
	gl.AttachShader(sm.program, vertexShader)
	gl.AttachShader(sm.program, fragmentShader)
	gl.LinkProgram(sm.program)

	var status int32
	gl.GetProgramiv(sm.program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(sm.program, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(sm.program, logLength, nil, gl.Str(logText))
		log.Fatalf("Shader linking failed: %s", logText)
	}

	sm.uViewProj = gl.GetUniformLocation(sm.program, gl.Str("uViewProj\x00"))
	gl.UseProgram(sm.program)
	return sm
}

// Use binds the shader program.
func (sm *ShaderManager) Use() {
	gl.UseProgram(sm.program)
}

// SetViewProj sets the view-projection uniform. The program must be bound.
func (sm *ShaderManager) SetViewProj(m mgl32.Mat4) {
	gl.UniformMatrix4fv(sm.uViewProj, 1, false, &m[0])
}

// Delete releases the program.
func (sm *ShaderManager) Delete() {
	gl.DeleteProgram(sm.program)
}

func (sm *ShaderManager) compileShader(source string, shaderType uint32) uint32 {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		log.Fatalf("Shader compilation failed: %s", logText)
	}

	return shader
}
