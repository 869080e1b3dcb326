package particles

// openCLSource holds the five stage programs. Struct layouts match
// Particle, SimParams and TerrainParams byte for byte; CELL_CAPACITY is
// supplied as a build define.
const openCLSource = `
typedef struct {
    float px, py, pz, radius;
    float vx, vy, vz, mass;
    float fx, fy, fz;
    uint id;
} particle_t;

typedef struct {
    uint count;
    float dt;
    uint pad0, pad1;
    float ax, ay, az;
    float restitution;
    float friction;
    uint grid_size;
    float cell_size;
    uint pad2;
    float bx, by, bz;
    uint pad3;
} params_t;

typedef struct {
    float resolution;
    float bounds_min;
    float bounds_max;
    float unused;
} terrain_t;

#define CELL_STRIDE (2 + CELL_CAPACITY)

int cell_axis(float v, float lo, __global const params_t* p) {
    int c = (int)floor((v - lo) / p->cell_size);
    return clamp(c, 0, (int)p->grid_size - 1);
}

__kernel void clear_grid(__global uint* grid, __global const params_t* p) {
    uint i = get_global_id(0);
    uint n = p->grid_size * p->grid_size * p->grid_size;
    if (i >= n) {
        return;
    }
    grid[i * CELL_STRIDE] = 0;
}

__kernel void bin_particles(
    __global const particle_t* parts,
    __global uint* grid,
    __global const params_t* p)
{
    uint i = get_global_id(0);
    if (i >= p->count) {
        return;
    }
    particle_t q = parts[i];
    int gs = (int)p->grid_size;
    int ix = cell_axis(q.px, -p->bx, p);
    int iy = cell_axis(q.py, -p->by, p);
    int iz = cell_axis(q.pz, -p->bz, p);
    uint base = (uint)((iz * gs + iy) * gs + ix) * CELL_STRIDE;
    uint slot = atomic_inc(&grid[base]);
    if (slot < CELL_CAPACITY) {
        grid[base + 2 + slot] = q.id;
    }
}

__kernel void integrate(
    __global particle_t* parts,
    __global particle_t* snapshot,
    __global const params_t* p)
{
    uint i = get_global_id(0);
    if (i >= p->count) {
        return;
    }
    particle_t q = parts[i];
    float inv = q.mass > 0.0f ? 1.0f / q.mass : 0.0f;
    float ax = p->ax + q.fx * inv;
    float ay = p->ay + q.fy * inv;
    float az = p->az + q.fz * inv;
    q.vx += ax * p->dt;
    q.vy += ay * p->dt;
    q.vz += az * p->dt;
    q.px += q.vx * p->dt;
    q.py += q.vy * p->dt;
    q.pz += q.vz * p->dt;
    q.fx = 0.0f;
    q.fy = 0.0f;
    q.fz = 0.0f;
    parts[i] = q;
    snapshot[i] = q;
}

__kernel void collide_particles(
    __global particle_t* parts,
    __global const particle_t* snapshot,
    __global const uint* grid,
    __global const params_t* p)
{
    uint i = get_global_id(0);
    if (i >= p->count) {
        return;
    }
    particle_t self = snapshot[i];
    float e = p->restitution;
    float inv_self = self.mass > 0.0f ? 1.0f / self.mass : 0.0f;
    float3 pos = (float3)(self.px, self.py, self.pz);
    float3 vel = (float3)(self.vx, self.vy, self.vz);
    float3 dpos = (float3)(0.0f);
    float3 dvel = (float3)(0.0f);

    int gs = (int)p->grid_size;
    int cx = cell_axis(self.px, -p->bx, p);
    int cy = cell_axis(self.py, -p->by, p);
    int cz = cell_axis(self.pz, -p->bz, p);

    for (int z = max(cz - 1, 0); z <= min(cz + 1, gs - 1); z++) {
        for (int y = max(cy - 1, 0); y <= min(cy + 1, gs - 1); y++) {
            for (int x = max(cx - 1, 0); x <= min(cx + 1, gs - 1); x++) {
                uint base = (uint)((z * gs + y) * gs + x) * CELL_STRIDE;
                uint n = min(grid[base], (uint)CELL_CAPACITY);
                for (uint k = 0; k < n; k++) {
                    uint j = grid[base + 2 + k];
                    if (j == self.id || j >= p->count) {
                        continue;
                    }
                    particle_t other = snapshot[j];
                    float3 delta = pos - (float3)(other.px, other.py, other.pz);
                    float reach = self.radius + other.radius;
                    float d2 = dot(delta, delta);
                    if (d2 >= reach * reach) {
                        continue;
                    }
                    float3 nrm;
                    float dist = 0.0f;
                    if (d2 < 1e-12f) {
                        nrm = (float3)(0.0f, 0.0f, self.id > other.id ? 1.0f : -1.0f);
                    } else {
                        dist = sqrt(d2);
                        nrm = delta / dist;
                    }
                    float inv_other = other.mass > 0.0f ? 1.0f / other.mass : 0.0f;
                    float inv_sum = inv_self + inv_other;
                    float share = inv_sum > 0.0f ? inv_self / inv_sum : 0.5f;
                    dpos += nrm * ((reach - dist) * share);

                    float vn = dot(vel - (float3)(other.vx, other.vy, other.vz), nrm);
                    if (vn < 0.0f && inv_sum > 0.0f) {
                        float jimp = -(1.0f + e) * vn / inv_sum;
                        dvel += nrm * (jimp * inv_self);
                    }
                }
            }
        }
    }

    pos += dpos;
    vel += dvel;
    parts[i].px = pos.x;
    parts[i].py = pos.y;
    parts[i].pz = pos.z;
    parts[i].vx = vel.x;
    parts[i].vy = vel.y;
    parts[i].vz = vel.z;
}

float height_at(__global const float* h, int res, int row, int col) {
    return h[row * res + col];
}

float sample_height(__global const float* h, __global const terrain_t* t, float x, float y) {
    int res = (int)t->resolution;
    if (res < 2) {
        return h[0];
    }
    int last = res - 1;
    float step = (t->bounds_max - t->bounds_min) / (float)last;
    float fx = clamp((x - t->bounds_min) / step, 0.0f, (float)last);
    float fy = clamp((y - t->bounds_min) / step, 0.0f, (float)last);
    int c0 = min((int)fx, last - 1);
    int r0 = min((int)fy, last - 1);
    float tx = fx - (float)c0;
    float ty = fy - (float)r0;
    float h00 = height_at(h, res, r0, c0);
    float h01 = height_at(h, res, r0, c0 + 1);
    float h10 = height_at(h, res, r0 + 1, c0);
    float h11 = height_at(h, res, r0 + 1, c0 + 1);
    float top = h00 + (h01 - h00) * tx;
    float bottom = h10 + (h11 - h10) * tx;
    return top + (bottom - top) * ty;
}

__kernel void collide_terrain(
    __global particle_t* parts,
    __global const float* heights,
    __global const terrain_t* t,
    __global const params_t* p)
{
    uint i = get_global_id(0);
    if (i >= p->count) {
        return;
    }
    particle_t q = parts[i];
    float e = p->restitution;
    float3 pos = (float3)(q.px, q.py, q.pz);
    float3 vel = (float3)(q.vx, q.vy, q.vz);

    float h = sample_height(heights, t, pos.x, pos.y);
    if (pos.z - q.radius < h) {
        int res = (int)t->resolution;
        float gx = 0.0f;
        float gy = 0.0f;
        if (res >= 2) {
            float s = 0.5f * (t->bounds_max - t->bounds_min) / (float)(res - 1);
            gx = (sample_height(heights, t, pos.x + s, pos.y) - sample_height(heights, t, pos.x - s, pos.y)) / (2.0f * s);
            gy = (sample_height(heights, t, pos.x, pos.y + s) - sample_height(heights, t, pos.x, pos.y - s)) / (2.0f * s);
        }
        float3 nrm = normalize((float3)(-gx, -gy, 1.0f));
        pos.z = h + q.radius;
        float vn = dot(vel, nrm);
        if (vn < 0.0f) {
            float dvn = -(1.0f + e) * vn;
            vel += nrm * dvn;
            float3 vt = vel - nrm * dot(vel, nrm);
            float speed = length(vt);
            if (speed > 0.0f) {
                float cut = min(speed, p->friction * dvn);
                vel -= vt * (cut / speed);
            }
        }
    }

    float b[3] = {p->bx, p->by, p->bz};
    float pp[3] = {pos.x, pos.y, pos.z};
    float vv[3] = {vel.x, vel.y, vel.z};
    for (int k = 0; k < 3; k++) {
        float lo = -b[k] + q.radius;
        float hi = b[k] - q.radius;
        if (lo > hi) {
            lo = 0.0f;
            hi = 0.0f;
        }
        if (pp[k] < lo) {
            pp[k] = lo;
            if (vv[k] < 0.0f) {
                vv[k] = -vv[k] * e;
            }
        } else if (pp[k] > hi) {
            pp[k] = hi;
            if (vv[k] > 0.0f) {
                vv[k] = -vv[k] * e;
            }
        }
    }

    parts[i].px = pp[0];
    parts[i].py = pp[1];
    parts[i].pz = pp[2];
    parts[i].vx = vv[0];
    parts[i].vy = vv[1];
    parts[i].vz = vv[2];
}
`

// openCLKernelNames maps each stage to its entry point in openCLSource.
var openCLKernelNames = [numStages]string{
	StageClearGrid:        "clear_grid",
	StageBinParticles:     "bin_particles",
	StageIntegrate:        "integrate",
	StageCollideParticles: "collide_particles",
	StageCollideTerrain:   "collide_terrain",
}
